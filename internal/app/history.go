package app

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/state"
)

func (a *App) RunHistory(jsonOut bool) (int, error) {
	records, err := state.LoadHistory(a.Paths)
	if err != nil {
		return 1, err
	}
	if jsonOut {
		if records == nil {
			records = []domain.HistoryRecord{}
		}
		return 0, a.writeJSON(records)
	}
	if len(records) == 0 {
		a.logger().Info("no submissions recorded", zap.String("dir", a.Paths.HistoryDir()))
		return 0, nil
	}
	for _, r := range records {
		payment := "no payment"
		switch {
		case r.PaymentCompleted:
			payment = "paid"
		case r.PaymentRequired:
			payment = "payment pending"
		}
		name := strings.TrimSpace(r.CompanyName)
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(a.Stdout, "%s  %-10s  cr=%s  %s  fees=%s  %s\n",
			r.SubmittedAt.Format(time.RFC3339), r.IncidentNumber, r.CRNumber, name, r.Fees, payment)
	}
	return 0, nil
}

// recordSubmission stores a finished submission unless history is disabled.
func (a *App) recordSubmission(s Settings, sessionID string, d domain.SRDetails, form domain.FormData) error {
	if !s.Config.History.Enabled {
		return nil
	}
	rec := domain.HistoryRecord{
		SessionID:        sessionID,
		IncidentID:       d.IncidentID,
		IncidentNumber:   d.IncidentNumber,
		CRNumber:         form.CRNumber,
		CompanyName:      form.CompanyName,
		Fees:             domain.FormatFees(form.Fees),
		YearsToRenew:     int(form.YearsToRenew),
		PaymentRequired:  d.PaymentRequired,
		PaymentCompleted: d.PaymentCompleted,
		ExistingSR:       d.Existing(),
		SubmittedAt:      a.Now(),
	}
	if rec.CRNumber == "" {
		rec.CRNumber = d.CRNumber
	}
	if err := state.SaveHistory(a.Paths, rec); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
