// Package validate holds the per-field rules and the per-step aggregate
// check used to gate wizard navigation.
package validate

import (
	"regexp"
	"strings"
	"time"

	"sr-wizard/internal/domain"
)

type Code string

const (
	OK            Code = ""
	Required      Code = "required"
	Length        Code = "length"
	Email         Code = "email"
	Date          Code = "date"
	UnknownBank   Code = "unknown_bank"
	InvalidChoice Code = "invalid_choice"
	Mismatch      Code = "mismatch"
	InvalidCR     Code = "invalid_cr"
)

const (
	IdentityDigits = 9
	ContactDigits  = 8
	AddressDigits  = 5
	AccountDigits  = 16
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[A-Za-z]{2,}$`)

// Digits strips every non-digit rune and truncates to max when max > 0.
func Digits(v string, max int) string {
	var b strings.Builder
	b.Grow(len(v))
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			continue
		}
		if max > 0 && n >= max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func RequiredString(v string) Code {
	if strings.TrimSpace(v) == "" {
		return Required
	}
	return OK
}

func RequiredDate(t time.Time) Code {
	if t.IsZero() {
		return Required
	}
	return OK
}

// FixedLengthDigits fails unless v holds exactly n digits.
func FixedLengthDigits(v string, n int) Code {
	if strings.TrimSpace(v) == "" {
		return Required
	}
	if len(Digits(v, 0)) != n || len(v) != n {
		return Length
	}
	return OK
}

// MaxLengthDigits fails when v holds more than n digits or any non-digit.
func MaxLengthDigits(v string, n int) Code {
	if v != Digits(v, n) {
		return Length
	}
	return OK
}

func EmailShape(v string) Code {
	v = strings.TrimSpace(v)
	if v == "" {
		return Required
	}
	if !emailPattern.MatchString(v) {
		return Email
	}
	return OK
}

type rule struct {
	sanitize func(string) string
	check    func(string) Code
}

func digitsOnly(max int) func(string) string {
	return func(v string) string { return Digits(v, max) }
}

func requiredMaxDigits(n int) func(string) Code {
	return func(v string) Code {
		if c := RequiredString(v); c != OK {
			return c
		}
		return MaxLengthDigits(v, n)
	}
}

func fixedDigits(n int) func(string) Code {
	return func(v string) Code { return FixedLengthDigits(v, n) }
}

var textRules = map[domain.Field]rule{
	domain.FieldCRNumber:              {sanitize: digitsOnly(IdentityDigits), check: requiredMaxDigits(IdentityDigits)},
	domain.FieldOCCINumber:            {sanitize: digitsOnly(IdentityDigits), check: requiredMaxDigits(IdentityDigits)},
	domain.FieldRentContractNumber:    {check: RequiredString},
	domain.FieldLicenseNumber:         {check: RequiredString},
	domain.FieldTaxRegistrationNumber: {sanitize: digitsOnly(AccountDigits), check: requiredMaxDigits(AccountDigits)},
	domain.FieldBeneficiaryNumber:     {sanitize: digitsOnly(AccountDigits), check: requiredMaxDigits(AccountDigits)},
	domain.FieldPOBox:                 {sanitize: digitsOnly(AddressDigits), check: requiredMaxDigits(AddressDigits)},
	domain.FieldPostalCode:            {sanitize: digitsOnly(AddressDigits), check: requiredMaxDigits(AddressDigits)},
	domain.FieldPhone:                 {sanitize: digitsOnly(ContactDigits), check: fixedDigits(ContactDigits)},
	domain.FieldFax:                   {sanitize: digitsOnly(ContactDigits), check: fixedDigits(ContactDigits)},
	domain.FieldMobile:                {sanitize: digitsOnly(ContactDigits), check: fixedDigits(ContactDigits)},
	domain.FieldEmail:                 {check: EmailShape},
	domain.FieldAccountNumber:         {sanitize: digitsOnly(AccountDigits), check: requiredMaxDigits(AccountDigits)},
	domain.FieldBankCode:              {sanitize: strings.TrimSpace, check: RequiredString},
}

// Sanitize applies the as-typed input filter for a field.
func Sanitize(field domain.Field, raw string) string {
	r, ok := textRules[field]
	if !ok || r.sanitize == nil {
		return raw
	}
	return r.sanitize(raw)
}

// MaxLength is the input cap for digit fields, or 0 when unbounded.
func MaxLength(field domain.Field) int {
	switch field {
	case domain.FieldCRNumber, domain.FieldOCCINumber:
		return IdentityDigits
	case domain.FieldPhone, domain.FieldFax, domain.FieldMobile:
		return ContactDigits
	case domain.FieldPOBox, domain.FieldPostalCode:
		return AddressDigits
	case domain.FieldTaxRegistrationNumber, domain.FieldBeneficiaryNumber, domain.FieldAccountNumber:
		return AccountDigits
	default:
		return 0
	}
}
