package domain

import (
	"encoding/base64"
	"strings"
)

const DefaultReportBaseURL = "https://isupport2.mm.gov.om/TestIReportV/CompanyRegnRpt.jsp"

// ExistingSR is the result of the active-SR check for a CR number.
type ExistingSR struct {
	CRNumber       string `json:"crNumber"`
	HasActiveSR    bool   `json:"hasActiveSR"`
	IncidentID     string `json:"incidentId,omitempty"`
	IncidentNumber string `json:"incidentNumber,omitempty"`
}

type SRDetails struct {
	IncidentID         string `json:"incidentId"`
	IncidentNumber     string `json:"incidentNumber"`
	StatusCode         string `json:"statusCode,omitempty"`
	StatusLabel        string `json:"srStatusLabel,omitempty"`
	Message            string `json:"message,omitempty"`
	SRType             string `json:"srType,omitempty"`
	PaymentRequired    bool   `json:"paymentRequired"`
	PaymentCompleted   bool   `json:"paymentCompleted"`
	ExistingSR         bool   `json:"existingSR"`
	CompanyID          string `json:"companyId,omitempty"`
	CompanyName        string `json:"companyName,omitempty"`
	CustomerName       string `json:"customerName,omitempty"`
	CRNumber           string `json:"crNumber,omitempty"`
	OCCINumber         string `json:"occiNumber,omitempty"`
	OCCIExpiryDate     string `json:"occiExpiryDate,omitempty"`
	Degree             string `json:"degree,omitempty"`
	YearsToRenew       string `json:"yearsToRenew,omitempty"`
	IsSME              bool   `json:"isSme"`
	SMEType            string `json:"smeType,omitempty"`
	IsRiyadaRegistered bool   `json:"isRiyadaRegistered"`
	RiyadaExpiryDate   string `json:"riyadaExpiryDate,omitempty"`
	BankCode           string `json:"bankCode,omitempty"`
	BankAccountNumber  string `json:"bankAccountNumber,omitempty"`
	PartyAccountNumber string `json:"partyAccountNumber,omitempty"`
	Fees               string `json:"fees,omitempty"`
	LastUpdateDate     string `json:"lastUpdateDate,omitempty"`

	// Extra keeps response fields that have no typed home.
	Extra map[string]string `json:"extra,omitempty"`
}

// Paid reports whether the SR has been settled.
func (d SRDetails) Paid() bool {
	if d.PaymentCompleted {
		return true
	}
	switch strings.TrimSpace(d.StatusLabel) {
	case "Paid", "Completed":
		return true
	}
	return false
}

// Existing reports whether the SR predates this submission or needs no
// payment, which both render as an existing request.
func (d SRDetails) Existing() bool {
	return d.ExistingSR || d.PaymentCompleted || !d.PaymentRequired
}

func (d SRDetails) NeedsPayment() bool {
	return d.PaymentRequired && !d.Paid()
}

// StatusText returns the backend label or a paid/pending default.
func (d SRDetails) StatusText() string {
	if label := strings.TrimSpace(d.StatusLabel); label != "" {
		return label
	}
	if d.Paid() {
		return "Paid"
	}
	return "Pending"
}

// ReportURL builds the registration report link for the SR's company, or ""
// when the company id is unknown.
func (d SRDetails) ReportURL(base string) string {
	id := strings.TrimSpace(d.CompanyID)
	if id == "" {
		return ""
	}
	if strings.TrimSpace(base) == "" {
		base = DefaultReportBaseURL
	}
	return base + "?reportParam1=" + base64.StdEncoding.EncodeToString([]byte(id))
}

type Receipt struct {
	ReceiptNumber   string `json:"receiptNumber"`
	InvoiceNumber   string `json:"invoiceNumber,omitempty"`
	ReceiptDate     string `json:"receiptDate,omitempty"`
	IncidentID      string `json:"incidentId,omitempty"`
	IncidentNumber  string `json:"incidentNumber"`
	ServiceTypeName string `json:"serviceTypeName,omitempty"`
	CustomerName    string `json:"customerName,omitempty"`
	CompanyName     string `json:"companyName,omitempty"`
	CRNumber        string `json:"crNumber,omitempty"`
	AmountPaid      string `json:"amountPaid,omitempty"`
	GeneratedAt     string `json:"generatedAt,omitempty"`
}

// LookupOption is a code/label pair from the degree and year lookups.
type LookupOption struct {
	Code    string `yaml:"code" json:"code"`
	NameEng string `yaml:"name_eng" json:"nameEng"`
	NameArb string `yaml:"name_arb" json:"nameArb"`
}
