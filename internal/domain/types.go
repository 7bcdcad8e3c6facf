package domain

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

const Version = 1

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

var languageMatcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// ParseLanguage resolves a locale string such as "ar", "ar-OM" or
// "ar_OM.UTF-8" to one of the supported languages. Anything unrecognised
// resolves to English.
func ParseLanguage(raw string) Language {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, "_", "-")
	if raw == "" || strings.EqualFold(raw, "C") || strings.EqualFold(raw, "POSIX") {
		return LanguageEnglish
	}
	tag, _ := language.MatchStrings(languageMatcher, raw)
	base, _ := tag.Base()
	if base.String() == string(LanguageArabic) {
		return LanguageArabic
	}
	return LanguageEnglish
}

// Pick returns the Arabic value for Arabic sessions and the English value
// otherwise, falling back to whichever side is present.
func (l Language) Pick(en, ar string) string {
	en = strings.TrimSpace(en)
	ar = strings.TrimSpace(ar)
	if l == LanguageArabic && ar != "" {
		return ar
	}
	if en != "" {
		return en
	}
	return ar
}

func (l Language) RightToLeft() bool {
	return l == LanguageArabic
}

type Step int

const (
	StepCompany Step = iota
	StepContract
	StepPayment
	StepSummary
	StepSRDetails
)

const StepCount = 5

func (s Step) String() string {
	switch s {
	case StepCompany:
		return "company"
	case StepContract:
		return "contract"
	case StepPayment:
		return "payment"
	case StepSummary:
		return "summary"
	case StepSRDetails:
		return "sr_details"
	default:
		return "unknown"
	}
}

func (s Step) Label() string {
	switch s {
	case StepCompany:
		return "Company Details"
	case StepContract:
		return "Contract Details"
	case StepPayment:
		return "Payment Details"
	case StepSummary:
		return "Summary"
	case StepSRDetails:
		return "SR Details"
	default:
		return "Unknown"
	}
}

func (s Step) Valid() bool {
	return s >= StepCompany && s < StepCount
}

type ConfigFile struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Fees    FeesConfig    `yaml:"fees"`
	UI      UIConfig      `yaml:"ui"`
	Report  ReportConfig  `yaml:"report"`
	History HistoryConfig `yaml:"history"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type FeesConfig struct {
	UnitRate string `yaml:"unit_rate"`
}

type UIConfig struct {
	Language      string `yaml:"language"`
	NoticeSeconds int    `yaml:"notice_seconds"`
}

type ReportConfig struct {
	BaseURL string `yaml:"base_url"`
}

type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HistoryRecord is written once per successful submission.
type HistoryRecord struct {
	Version          int       `yaml:"version" json:"-"`
	SessionID        string    `yaml:"session_id" json:"sessionId"`
	IncidentID       string    `yaml:"incident_id" json:"incidentId"`
	IncidentNumber   string    `yaml:"incident_number" json:"incidentNumber"`
	CRNumber         string    `yaml:"cr_number" json:"crNumber"`
	CompanyName      string    `yaml:"company_name" json:"companyName"`
	Fees             string    `yaml:"fees" json:"fees"`
	YearsToRenew     int       `yaml:"years_to_renew" json:"yearsToRenew"`
	PaymentRequired  bool      `yaml:"payment_required" json:"paymentRequired"`
	PaymentCompleted bool      `yaml:"payment_completed" json:"paymentCompleted"`
	ExistingSR       bool      `yaml:"existing_sr" json:"existingSR"`
	SubmittedAt      time.Time `yaml:"submitted_at" json:"submittedAt"`
}
