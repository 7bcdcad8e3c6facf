package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sr-wizard/internal/domain"
)

// flexBool accepts JSON booleans as well as "true"/"false" strings and 0/1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = false
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = flexBool(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "y", "yes", "1":
			*b = true
		case "false", "n", "no", "0", "":
			*b = false
		default:
			return fmt.Errorf("%w: boolean %q", ErrMalformed, v)
		}
	case float64:
		*b = v != 0
	default:
		return fmt.Errorf("%w: boolean %s", ErrMalformed, string(data))
	}
	return nil
}

// flexString accepts JSON strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: expected string or number, got %s", ErrMalformed, string(data))
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) String() string { return string(s) }

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Status *statusBody     `json:"status"`
}

type statusBody struct {
	Code    flexString `json:"code"`
	Message string     `json:"message"`
}

func (e envelope) hasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && string(d) != "null"
}

// unwrap returns the inner data of a {data, status} envelope, or the body
// itself when the response is not enveloped.
func unwrap(body []byte) []byte {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if env.hasData() {
		return env.Data
	}
	return body
}

type validateRequest struct {
	CRNumber   string `json:"crNumber"`
	OCCINumber string `json:"occiNumber"`
	Expiry     string `json:"expiry"`
}

type validateData struct {
	CRMatch          flexBool   `json:"cr_match"`
	OCCINumberMatch  flexBool   `json:"occi_number_match"`
	ExpiryValid      flexBool   `json:"expiry_valid"`
	NameEn           string     `json:"name_en"`
	NameAr           string     `json:"name_ar"`
	GradeDescEn      string     `json:"grade_desc_en"`
	IsSMERegistered  flexBool   `json:"is_sme_registered"`
	SMETypeName      string     `json:"sme_type_name"`
	IsRiyadaCard     flexBool   `json:"is_riyada_card"`
	RiyadaCardExpiry flexString `json:"riyada_card_expiry"`
}

func (v validateData) match() domain.CompanyMatch {
	m := domain.CompanyMatch{
		CRMatch:         bool(v.CRMatch),
		OCCINumberMatch: bool(v.OCCINumberMatch),
		ExpiryValid:     bool(v.ExpiryValid),
		NameEn:          v.NameEn,
		NameAr:          v.NameAr,
		GradeDescEn:     v.GradeDescEn,
		IsSMERegistered: bool(v.IsSMERegistered),
		SMETypeName:     v.SMETypeName,
		IsRiyadaCard:    bool(v.IsRiyadaCard),
	}
	if t, err := domain.ParseDate(v.RiyadaCardExpiry.String()); err == nil {
		m.RiyadaCardExpiry = t
	}
	return m
}

type companyRecordData struct {
	ContractNumber        flexString `json:"contractNumber"`
	RentContractNumber    flexString `json:"rentContractNumber"`
	LicenseNumber         flexString `json:"licenseNumber"`
	TaxRegistrationNumber flexString `json:"taxRegistrationNumber"`
	BeneficiaryNumber     flexString `json:"beneficiaryNumber"`
	POBox                 flexString `json:"poBox"`
	PostalCode            flexString `json:"postalCode"`
	Phone                 flexString `json:"phone"`
	Fax                   flexString `json:"fax"`
	Mobile                flexString `json:"mobile"`
	BankCode              flexString `json:"bankCode"`
	AccountNumber         flexString `json:"accountNumber"`
	Email                 string     `json:"email"`
	Fees                  flexString `json:"fees"`
	YearsToRenew          flexString `json:"yearsToRenew"`
}

func (c companyRecordData) record() domain.CompanyRecord {
	contract := c.ContractNumber.String()
	if contract == "" {
		contract = c.RentContractNumber.String()
	}
	years, _ := strconv.Atoi(c.YearsToRenew.String())
	return domain.CompanyRecord{
		ContractNumber:        contract,
		LicenseNumber:         c.LicenseNumber.String(),
		TaxRegistrationNumber: c.TaxRegistrationNumber.String(),
		BeneficiaryNumber:     c.BeneficiaryNumber.String(),
		POBox:                 c.POBox.String(),
		PostalCode:            c.PostalCode.String(),
		Phone:                 c.Phone.String(),
		Fax:                   c.Fax.String(),
		Mobile:                c.Mobile.String(),
		BankCode:              c.BankCode.String(),
		AccountNumber:         c.AccountNumber.String(),
		Email:                 strings.TrimSpace(c.Email),
		Fees:                  c.Fees.String(),
		YearsToRenew:          years,
	}
}

type existingSRData struct {
	CRNumber       flexString `json:"crNumber"`
	HasActiveSR    flexBool   `json:"hasActiveSR"`
	IncidentID     flexString `json:"incidentId"`
	IncidentNumber flexString `json:"incidentNumber"`
}

// bankData decodes the key spellings seen across backend versions.
type bankData struct {
	domain.Bank
}

func (b *bankData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Code = firstString(raw, "bankCode", "bank_code", "BANK_CODE", "code")
	b.NameEng = firstString(raw, "bankNameEng", "bank_name_eng", "BANK_NAME_ENG", "name")
	b.NameArb = firstString(raw, "bankNameArb", "bank_name_arb", "BANK_NAME_ARB", "nameAr")
	return nil
}

type optionData struct {
	domain.LookupOption
}

func (o *optionData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Code = firstString(raw, "code", "id", "value")
	o.NameEng = firstString(raw, "nameEng", "name_en", "name")
	o.NameArb = firstString(raw, "nameArb", "name_ar", "nameAr")
	return nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s flexString
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		if s != "" {
			return s.String()
		}
	}
	return ""
}

type srData struct {
	IncidentID         flexString `json:"incidentId"`
	IncidentNumber     flexString `json:"incidentNumber"`
	StatusCode         flexString `json:"statusCode"`
	StatusLabel        string     `json:"srStatusLabel"`
	Message            string     `json:"message"`
	SRType             string     `json:"srType"`
	PaymentRequired    flexBool   `json:"paymentRequired"`
	PaymentCompleted   flexBool   `json:"paymentCompleted"`
	ExistingSR         flexBool   `json:"existingSR"`
	CompanyID          flexString `json:"companyId"`
	CompanyName        string     `json:"companyName"`
	CustomerName       string     `json:"customerName"`
	CRNumber           flexString `json:"crNumber"`
	OCCINumber         flexString `json:"occiNumber"`
	OCCIExpiryDate     flexString `json:"occiExpiryDate"`
	DegreeName         string     `json:"degreeName"`
	Degree             string     `json:"degree"`
	YearsToRenew       flexString `json:"yearsToRenew"`
	IsSME              flexBool   `json:"isSme"`
	SMEType            string     `json:"smeType"`
	IsRiyadaRegistered flexBool   `json:"isRiyadaRegistered"`
	RiyadaExpiryDate   flexString `json:"riyadaExpiryDate"`
	BankCode           flexString `json:"bankCode"`
	BankAccountNumber  flexString `json:"bankAccountNumber"`
	PartyAccountNumber flexString `json:"partyAccountNumber"`
	Fee                flexString `json:"fee"`
	Fees               flexString `json:"fees"`
	LastUpdateDate     flexString `json:"lastUpdateDate"`
}

var knownSRKeys = map[string]bool{
	"incidentId": true, "incidentNumber": true, "statusCode": true, "srStatusLabel": true,
	"message": true, "srType": true, "paymentRequired": true, "paymentCompleted": true,
	"existingSR": true, "companyId": true, "companyName": true, "customerName": true,
	"crNumber": true, "occiNumber": true, "occiExpiryDate": true, "degreeName": true,
	"degree": true, "yearsToRenew": true, "isSme": true, "smeType": true,
	"isRiyadaRegistered": true, "riyadaExpiryDate": true, "bankCode": true,
	"bankAccountNumber": true, "partyAccountNumber": true, "fee": true, "fees": true,
	"lastUpdateDate": true,
}

func decodeSRDetails(body []byte) (domain.SRDetails, error) {
	var d srData
	if err := json.Unmarshal(body, &d); err != nil {
		return domain.SRDetails{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	degree := d.DegreeName
	if degree == "" {
		degree = d.Degree
	}
	fees := d.Fee.String()
	if fees == "" {
		fees = d.Fees.String()
	}
	out := domain.SRDetails{
		IncidentID:         d.IncidentID.String(),
		IncidentNumber:     d.IncidentNumber.String(),
		StatusCode:         d.StatusCode.String(),
		StatusLabel:        d.StatusLabel,
		Message:            d.Message,
		SRType:             d.SRType,
		PaymentRequired:    bool(d.PaymentRequired),
		PaymentCompleted:   bool(d.PaymentCompleted),
		ExistingSR:         bool(d.ExistingSR),
		CompanyID:          d.CompanyID.String(),
		CompanyName:        d.CompanyName,
		CustomerName:       d.CustomerName,
		CRNumber:           d.CRNumber.String(),
		OCCINumber:         d.OCCINumber.String(),
		OCCIExpiryDate:     d.OCCIExpiryDate.String(),
		Degree:             degree,
		YearsToRenew:       d.YearsToRenew.String(),
		IsSME:              bool(d.IsSME),
		SMEType:            d.SMEType,
		IsRiyadaRegistered: bool(d.IsRiyadaRegistered),
		RiyadaExpiryDate:   d.RiyadaExpiryDate.String(),
		BankCode:           d.BankCode.String(),
		BankAccountNumber:  d.BankAccountNumber.String(),
		PartyAccountNumber: d.PartyAccountNumber.String(),
		Fees:               fees,
		LastUpdateDate:     d.LastUpdateDate.String(),
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err == nil {
		for k, v := range raw {
			if knownSRKeys[k] {
				continue
			}
			var s flexString
			if json.Unmarshal(v, &s) == nil && s != "" {
				if out.Extra == nil {
					out.Extra = map[string]string{}
				}
				out.Extra[k] = s.String()
			}
		}
	}
	return out, nil
}

type receiptData struct {
	ReceiptNumber   flexString `json:"receiptNumber"`
	InvoiceNumber   flexString `json:"invoiceNumber"`
	ReceiptDate     flexString `json:"receiptDate"`
	IncidentID      flexString `json:"incidentId"`
	IncidentNumber  flexString `json:"incidentNumber"`
	ServiceTypeName string     `json:"serviceTypeName"`
	CustomerName    string     `json:"customerName"`
	CompanyName     string     `json:"companyName"`
	CRNumber        flexString `json:"crNumber"`
	AmountPaid      flexString `json:"amountPaid"`
	GeneratedAt     flexString `json:"generatedAt"`
}

func (r receiptData) receipt() domain.Receipt {
	return domain.Receipt{
		ReceiptNumber:   r.ReceiptNumber.String(),
		InvoiceNumber:   r.InvoiceNumber.String(),
		ReceiptDate:     r.ReceiptDate.String(),
		IncidentID:      r.IncidentID.String(),
		IncidentNumber:  r.IncidentNumber.String(),
		ServiceTypeName: r.ServiceTypeName,
		CustomerName:    r.CustomerName,
		CompanyName:     r.CompanyName,
		CRNumber:        r.CRNumber.String(),
		AmountPaid:      r.AmountPaid.String(),
		GeneratedAt:     r.GeneratedAt.String(),
	}
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.OCCIDateLayout)
}
