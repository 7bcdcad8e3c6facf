package validate

import "sr-wizard/internal/domain"

// Context carries the cross-field state conditional rules depend on.
type Context struct {
	CompanyValidated bool
	HasActiveSR      bool
	Banks            *domain.BankDirectory
}

var stepFields = map[domain.Step][]domain.Field{
	domain.StepCompany: {
		domain.FieldCRNumber,
		domain.FieldOCCINumber,
		domain.FieldOCCIExpiry,
		domain.FieldRiyadaExpiry,
		domain.FieldYearsToRenew,
	},
	domain.StepContract: {
		domain.FieldRentContractNumber,
		domain.FieldLicenseNumber,
		domain.FieldTaxRegistrationNumber,
		domain.FieldBeneficiaryNumber,
		domain.FieldPOBox,
		domain.FieldPostalCode,
		domain.FieldPhone,
		domain.FieldFax,
	},
	domain.StepPayment: {
		domain.FieldMobile,
		domain.FieldEmail,
		domain.FieldBankCode,
		domain.FieldAccountNumber,
	},
}

// StepFields lists the fields a step renders and validates, in order.
func StepFields(step domain.Step) []domain.Field {
	fields := stepFields[step]
	out := make([]domain.Field, len(fields))
	copy(out, fields)
	return out
}

// IdentityFields are the validate-company preconditions.
func IdentityFields() []domain.Field {
	return []domain.Field{domain.FieldCRNumber, domain.FieldOCCINumber, domain.FieldOCCIExpiry}
}

// Visible reports whether a conditional field currently applies.
func Visible(field domain.Field, form domain.FormData, ctx Context) bool {
	switch field {
	case domain.FieldRiyadaExpiry:
		return form.IsRiyadaRegistered && !ctx.HasActiveSR
	case domain.FieldYearsToRenew:
		return ctx.CompanyValidated && !ctx.HasActiveSR
	default:
		return true
	}
}

// Field runs the rule for a single field. Conditional fields that do not
// apply always pass.
func Field(field domain.Field, form domain.FormData, ctx Context) Code {
	if !Visible(field, form, ctx) {
		return OK
	}
	switch field {
	case domain.FieldOCCIExpiry, domain.FieldRiyadaExpiry:
		return RequiredDate(form.Date(field))
	case domain.FieldYearsToRenew:
		if form.YearsToRenew == domain.YearsUnset {
			return Required
		}
		if !form.YearsToRenew.Valid() {
			return InvalidChoice
		}
		return OK
	case domain.FieldBankCode:
		if c := RequiredString(form.BankCode); c != OK {
			return c
		}
		if ctx.Banks != nil && !ctx.Banks.Contains(form.BankCode) {
			return UnknownBank
		}
		return OK
	}
	r, ok := textRules[field]
	if !ok || r.check == nil {
		return OK
	}
	return r.check(form.Text(field))
}

// Report maps each checked field to its code. OK entries are kept so the
// caller can clear stale inline errors.
type Report struct {
	Step   domain.Step
	Errors map[domain.Field]Code
	order  []domain.Field
}

func (r Report) OK() bool {
	for _, c := range r.Errors {
		if c != OK {
			return false
		}
	}
	return true
}

// Failed returns the failing fields in render order.
func (r Report) Failed() []domain.Field {
	var out []domain.Field
	for _, f := range r.order {
		if r.Errors[f] != OK {
			out = append(out, f)
		}
	}
	return out
}

func Fields(step domain.Step, fields []domain.Field, form domain.FormData, ctx Context) Report {
	r := Report{Step: step, Errors: make(map[domain.Field]Code, len(fields)), order: fields}
	for _, f := range fields {
		r.Errors[f] = Field(f, form, ctx)
	}
	return r
}

// Step validates every field the step renders.
func Step(step domain.Step, form domain.FormData, ctx Context) Report {
	return Fields(step, StepFields(step), form, ctx)
}
