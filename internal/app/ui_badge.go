package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sr-wizard/internal/domain"
)

type badgeTone int

const (
	badgeToneNeutral badgeTone = iota
	badgeToneSuccess
	badgeToneWarning
)

func renderBadge(label string, tone badgeTone) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch tone {
	case badgeToneSuccess:
		return base.
			Foreground(lipgloss.AdaptiveColor{Light: "#0F5132", Dark: "#0D1117"}).
			Background(successColor).
			Render(label)
	case badgeToneWarning:
		return base.
			Foreground(lipgloss.AdaptiveColor{Light: "#663C00", Dark: "#161B22"}).
			Background(warningColor).
			Render(label)
	default:
		return base.
			Foreground(mutedTextColor).
			Background(panelBgColor).
			Render(label)
	}
}

// paymentBadge colours the payment status: paid is green, pending amber.
func paymentBadge(c catalog, d domain.SRDetails) string {
	tone := badgeToneNeutral
	switch {
	case d.Paid():
		tone = badgeToneSuccess
	case d.NeedsPayment():
		tone = badgeToneWarning
	}
	return renderBadge(c.paymentStatus(d), tone)
}
