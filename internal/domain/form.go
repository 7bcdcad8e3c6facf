package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is used for submission payloads and display.
	DateLayout = "2006-01-02"
	// OCCIDateLayout is the expiry format the validate-company endpoint expects.
	OCCIDateLayout = "02-01-2006"

	SMETypeNone = "-"
)

type Field string

const (
	FieldCRNumber           Field = "crNumber"
	FieldOCCINumber         Field = "occiNumber"
	FieldOCCIExpiry         Field = "occiExpiry"
	FieldCompanyName        Field = "companyName"
	FieldDegree             Field = "degree"
	FieldIsSME              Field = "isSme"
	FieldSMEType            Field = "smeType"
	FieldIsRiyadaRegistered Field = "isRiyadaRegistered"
	FieldRiyadaExpiry       Field = "riyadaExpiry"
	FieldYearsToRenew       Field = "yearsToRenew"
	FieldFees               Field = "fees"

	FieldRentContractNumber    Field = "rentContractNumber"
	FieldLicenseNumber         Field = "licenseNumber"
	FieldTaxRegistrationNumber Field = "taxRegistrationNumber"
	FieldBeneficiaryNumber     Field = "beneficiaryNumber"
	FieldPOBox                 Field = "poBox"
	FieldPostalCode            Field = "postalCode"
	FieldPhone                 Field = "phone"
	FieldFax                   Field = "fax"
	FieldMobile                Field = "mobile"
	FieldEmail                 Field = "email"

	FieldBankCode      Field = "bankCode"
	FieldAccountNumber Field = "accountNumber"
)

// Derived reports whether the field is only ever written by the system.
func (f Field) Derived() bool {
	switch f {
	case FieldCompanyName, FieldDegree, FieldIsSME, FieldSMEType, FieldIsRiyadaRegistered, FieldFees:
		return true
	default:
		return false
	}
}

// Identity fields are locked while the company stays validated.
func (f Field) Identity() bool {
	return f == FieldCRNumber || f == FieldOCCINumber || f == FieldOCCIExpiry
}

func (f Field) Date() bool {
	return f == FieldOCCIExpiry || f == FieldRiyadaExpiry
}

type YearsToRenew int

const (
	YearsUnset YearsToRenew = 0
	YearsOne   YearsToRenew = 1
	YearsTwo   YearsToRenew = 2
)

var RenewalOptions = []YearsToRenew{YearsOne, YearsTwo}

func (y YearsToRenew) Valid() bool {
	return y == YearsOne || y == YearsTwo
}

func ParseYearsToRenew(raw string) (YearsToRenew, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return YearsUnset, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return YearsUnset, fmt.Errorf("years to renew %q is not a number", raw)
	}
	y := YearsToRenew(n)
	if !y.Valid() {
		return YearsUnset, fmt.Errorf("years to renew must be 1 or 2, got %d", n)
	}
	return y, nil
}

// Fees is the renewal charge for the given number of years.
func Fees(years YearsToRenew, unitRate decimal.Decimal) decimal.Decimal {
	if !years.Valid() {
		return decimal.Zero
	}
	return unitRate.Mul(decimal.NewFromInt(int64(years)))
}

func FormatFees(fees decimal.Decimal) string {
	return fees.StringFixed(3)
}

func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{DateLayout, OCCIDateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

type FormData struct {
	CRNumber           string          `yaml:"cr_number" json:"crNumber"`
	OCCINumber         string          `yaml:"occi_number" json:"occiNumber"`
	OCCIExpiry         time.Time       `yaml:"occi_expiry" json:"occiExpiry"`
	CompanyName        string          `yaml:"company_name" json:"companyName"`
	Degree             string          `yaml:"degree" json:"degree"`
	IsSME              bool            `yaml:"is_sme" json:"isSme"`
	SMEType            string          `yaml:"sme_type" json:"smeType"`
	IsRiyadaRegistered bool            `yaml:"is_riyada_registered" json:"isRiyadaRegistered"`
	RiyadaExpiry       time.Time       `yaml:"riyada_expiry" json:"riyadaExpiry"`
	YearsToRenew       YearsToRenew    `yaml:"years_to_renew" json:"yearsToRenew"`
	Fees               decimal.Decimal `yaml:"fees" json:"fees"`

	RentContractNumber    string `yaml:"rent_contract_number" json:"rentContractNumber"`
	LicenseNumber         string `yaml:"license_number" json:"licenseNumber"`
	TaxRegistrationNumber string `yaml:"tax_registration_number" json:"taxRegistrationNumber"`
	BeneficiaryNumber     string `yaml:"beneficiary_number" json:"beneficiaryNumber"`
	POBox                 string `yaml:"po_box" json:"poBox"`
	PostalCode            string `yaml:"postal_code" json:"postalCode"`
	Phone                 string `yaml:"phone" json:"phone"`
	Fax                   string `yaml:"fax" json:"fax"`
	Mobile                string `yaml:"mobile" json:"mobile"`
	Email                 string `yaml:"email" json:"email"`

	BankCode      string `yaml:"bank_code" json:"bankCode"`
	AccountNumber string `yaml:"account_number" json:"accountNumber"`
}

func EmptyForm() FormData {
	return FormData{SMEType: SMETypeNone, Fees: decimal.Zero}
}

// Rederive recomputes every derived value from its inputs.
func (f *FormData) Rederive(unitRate decimal.Decimal) {
	if !f.IsSME || strings.TrimSpace(f.SMEType) == "" {
		f.SMEType = SMETypeNone
	}
	if !f.IsRiyadaRegistered {
		f.RiyadaExpiry = time.Time{}
	}
	f.Fees = Fees(f.YearsToRenew, unitRate)
}

func (f *FormData) textField(field Field) *string {
	switch field {
	case FieldCRNumber:
		return &f.CRNumber
	case FieldOCCINumber:
		return &f.OCCINumber
	case FieldCompanyName:
		return &f.CompanyName
	case FieldDegree:
		return &f.Degree
	case FieldSMEType:
		return &f.SMEType
	case FieldRentContractNumber:
		return &f.RentContractNumber
	case FieldLicenseNumber:
		return &f.LicenseNumber
	case FieldTaxRegistrationNumber:
		return &f.TaxRegistrationNumber
	case FieldBeneficiaryNumber:
		return &f.BeneficiaryNumber
	case FieldPOBox:
		return &f.POBox
	case FieldPostalCode:
		return &f.PostalCode
	case FieldPhone:
		return &f.Phone
	case FieldFax:
		return &f.Fax
	case FieldMobile:
		return &f.Mobile
	case FieldEmail:
		return &f.Email
	case FieldBankCode:
		return &f.BankCode
	case FieldAccountNumber:
		return &f.AccountNumber
	default:
		return nil
	}
}

// Text returns the string value of a text field, or "" for other kinds.
func (f FormData) Text(field Field) string {
	if p := f.textField(field); p != nil {
		return *p
	}
	return ""
}

// SetText stores a text field value and reports whether the field is a
// text field at all. It performs no sanitization.
func (f *FormData) SetText(field Field, value string) bool {
	p := f.textField(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (f FormData) Date(field Field) time.Time {
	switch field {
	case FieldOCCIExpiry:
		return f.OCCIExpiry
	case FieldRiyadaExpiry:
		return f.RiyadaExpiry
	default:
		return time.Time{}
	}
}

func (f *FormData) SetDate(field Field, t time.Time) bool {
	switch field {
	case FieldOCCIExpiry:
		f.OCCIExpiry = t
	case FieldRiyadaExpiry:
		f.RiyadaExpiry = t
	default:
		return false
	}
	return true
}

// Display renders any field as text for summaries.
func (f FormData) Display(field Field) string {
	switch field {
	case FieldOCCIExpiry, FieldRiyadaExpiry:
		return FormatDate(f.Date(field))
	case FieldIsSME:
		return yesNo(f.IsSME)
	case FieldIsRiyadaRegistered:
		return yesNo(f.IsRiyadaRegistered)
	case FieldYearsToRenew:
		if !f.YearsToRenew.Valid() {
			return ""
		}
		return strconv.Itoa(int(f.YearsToRenew))
	case FieldFees:
		return FormatFees(f.Fees)
	default:
		return f.Text(field)
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// CompanyMatch is the interpreted validate-company response.
type CompanyMatch struct {
	CRMatch          bool
	OCCINumberMatch  bool
	ExpiryValid      bool
	NameEn           string
	NameAr           string
	GradeDescEn      string
	IsSMERegistered  bool
	SMETypeName      string
	IsRiyadaCard     bool
	RiyadaCardExpiry time.Time
}

func (m CompanyMatch) AllMatch() bool {
	return m.CRMatch && m.OCCINumberMatch && m.ExpiryValid
}

// Failed lists the identity fields whose check did not match, in form order.
func (m CompanyMatch) Failed() []Field {
	var out []Field
	if !m.CRMatch {
		out = append(out, FieldCRNumber)
	}
	if !m.OCCINumberMatch {
		out = append(out, FieldOCCINumber)
	}
	if !m.ExpiryValid {
		out = append(out, FieldOCCIExpiry)
	}
	return out
}

// CompanyRecord is the auto-fill record returned by the by-CR lookup.
type CompanyRecord struct {
	ContractNumber        string `yaml:"contract_number" json:"contractNumber"`
	LicenseNumber         string `yaml:"license_number" json:"licenseNumber"`
	TaxRegistrationNumber string `yaml:"tax_registration_number" json:"taxRegistrationNumber"`
	BeneficiaryNumber     string `yaml:"beneficiary_number" json:"beneficiaryNumber"`
	POBox                 string `yaml:"po_box" json:"poBox"`
	PostalCode            string `yaml:"postal_code" json:"postalCode"`
	Phone                 string `yaml:"phone" json:"phone"`
	Fax                   string `yaml:"fax" json:"fax"`
	Mobile                string `yaml:"mobile" json:"mobile"`
	BankCode              string `yaml:"bank_code" json:"bankCode"`
	AccountNumber         string `yaml:"account_number" json:"accountNumber"`
	Email                 string `yaml:"email" json:"email"`
	Fees                  string `yaml:"fees" json:"fees"`
	YearsToRenew          int    `yaml:"years_to_renew" json:"yearsToRenew"`
}

// TextFields maps the record onto form text fields.
func (r CompanyRecord) TextFields() []FieldValue {
	return []FieldValue{
		{FieldRentContractNumber, r.ContractNumber},
		{FieldLicenseNumber, r.LicenseNumber},
		{FieldTaxRegistrationNumber, r.TaxRegistrationNumber},
		{FieldBeneficiaryNumber, r.BeneficiaryNumber},
		{FieldPOBox, r.POBox},
		{FieldPostalCode, r.PostalCode},
		{FieldPhone, r.Phone},
		{FieldFax, r.Fax},
		{FieldMobile, r.Mobile},
		{FieldEmail, r.Email},
		{FieldAccountNumber, r.AccountNumber},
	}
}

type FieldValue struct {
	Field Field
	Value string
}
