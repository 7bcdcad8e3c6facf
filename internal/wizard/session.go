// Package wizard owns the registration session state machine and the
// asynchronous flows that feed it: auto-fill, company validation, the bank
// directory load and submission.
//
// A Session is not safe for concurrent use. Remote calls run elsewhere and
// hand their results back through the Apply* methods, which drop results
// that no longer match the session.
package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/validate"
)

// LastStep is the terminal SR details step.
const LastStep = domain.StepSRDetails

// DefaultUnitRate is the fee in OMR per renewal year.
var DefaultUnitRate = decimal.RequireFromString("50.000")

// Errors returned by the Set* and PrepareSubmission methods.
var (
	ErrReadOnly          = errors.New("field is read-only")
	ErrLocked            = errors.New("field is locked while the company is validated")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownBank       = errors.New("unknown bank code")
	ErrExistingSRView    = errors.New("not available while viewing an existing service request")
	ErrAlreadySubmitted  = errors.New("service request already submitted")
	ErrStepsIncomplete   = errors.New("previous steps are incomplete")
	ErrCaptchaUnverified = errors.New("captcha is not verified")
)

// Action is the primary button for the current session state.
type Action int

const (
	ActionValidate Action = iota
	ActionNext
	ActionViewExistingSR
	ActionSubmit
	ActionHome
)

func (a Action) String() string {
	switch a {
	case ActionValidate:
		return "validate"
	case ActionNext:
		return "next"
	case ActionViewExistingSR:
		return "view_existing_sr"
	case ActionSubmit:
		return "submit"
	case ActionHome:
		return "home"
	default:
		return "unknown"
	}
}

type Options struct {
	ID       string
	Banks    *domain.BankDirectory
	UnitRate decimal.Decimal
	Language domain.Language
}

type Session struct {
	ID       string
	Lang     domain.Language
	UnitRate decimal.Decimal

	form      domain.FormData
	banks     *domain.BankDirectory
	active    domain.Step
	completed map[domain.Step]struct{}

	existingView   bool
	existing       *domain.ExistingSR
	details        *domain.SRDetails
	detailsGen     uint64
	loadingDetails bool

	validated bool
	match     *domain.CompanyMatch
	pending   *gateway.CompanyQuery

	touched   map[domain.Field]bool
	fieldErrs map[domain.Field]validate.Code
}

func NewSession(opts Options) *Session {
	s := &Session{
		ID:       opts.ID,
		Lang:     opts.Language,
		UnitRate: opts.UnitRate,
		banks:    opts.Banks,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Lang == "" {
		s.Lang = domain.LanguageEnglish
	}
	if s.UnitRate.IsZero() {
		s.UnitRate = DefaultUnitRate
	}
	if s.banks == nil {
		s.banks = domain.FallbackBankDirectory()
	}
	s.resetState()
	return s
}

func (s *Session) resetState() {
	s.form = domain.EmptyForm()
	s.active = domain.StepCompany
	s.completed = map[domain.Step]struct{}{}
	s.existingView = false
	s.existing = nil
	s.details = nil
	s.loadingDetails = false
	s.detailsGen++
	s.validated = false
	s.match = nil
	s.pending = nil
	s.touched = map[domain.Field]bool{}
	s.fieldErrs = map[domain.Field]validate.Code{}
}

func (s *Session) Form() domain.FormData { return s.form }

func (s *Session) Banks() *domain.BankDirectory { return s.banks }

// SetBanks installs the loaded directory. A bank value that was stored as a
// display name is migrated to its code.
func (s *Session) SetBanks(d *domain.BankDirectory) {
	if d == nil {
		return
	}
	s.banks = d
	code := strings.TrimSpace(s.form.BankCode)
	if code == "" || d.Contains(code) {
		return
	}
	if c, ok := d.CodeByName(code); ok {
		s.form.BankCode = c
	}
}

func (s *Session) Active() domain.Step { return s.active }

func (s *Session) Completed() []domain.Step {
	out := make([]domain.Step, 0, len(s.completed))
	for step := range s.completed {
		out = append(out, step)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Session) IsCompleted(step domain.Step) bool {
	_, ok := s.completed[step]
	return ok
}

func (s *Session) ExistingSRView() bool { return s.existingView }

func (s *Session) ExistingSR() (domain.ExistingSR, bool) {
	if s.existing == nil {
		return domain.ExistingSR{}, false
	}
	return *s.existing, true
}

func (s *Session) HasActiveSR() bool {
	return s.existing != nil && s.existing.HasActiveSR
}

func (s *Session) SRDetails() (domain.SRDetails, bool) {
	if s.details == nil {
		return domain.SRDetails{}, false
	}
	return *s.details, true
}

func (s *Session) LoadingDetails() bool { return s.loadingDetails }

func (s *Session) CompanyValidated() bool { return s.validated }

func (s *Session) ValidatingCompany() bool { return s.pending != nil }

// Match is the last successful validate-company result.
func (s *Session) Match() (domain.CompanyMatch, bool) {
	if s.match == nil {
		return domain.CompanyMatch{}, false
	}
	return *s.match, true
}

func (s *Session) FieldError(field domain.Field) validate.Code { return s.fieldErrs[field] }

func (s *Session) FieldErrors() map[domain.Field]validate.Code {
	out := make(map[domain.Field]validate.Code, len(s.fieldErrs))
	for k, v := range s.fieldErrs {
		out[k] = v
	}
	return out
}

func (s *Session) Touched(field domain.Field) bool { return s.touched[field] }

func (s *Session) ValidationContext() validate.Context {
	return validate.Context{
		CompanyValidated: s.validated,
		HasActiveSR:      s.HasActiveSR(),
		Banks:            s.banks,
	}
}

// Visible reports whether a conditional field applies right now.
func (s *Session) Visible(field domain.Field) bool {
	return validate.Visible(field, s.form, s.ValidationContext())
}

// terminal reports whether the session sits on a details step that can only
// be left through ResetToHome.
func (s *Session) terminal() bool {
	return s.existingView || s.details != nil
}

// Next marks the active step completed and moves forward. It is a no-op at
// the last step and on the terminal details step.
func (s *Session) Next() bool {
	if s.terminal() || s.active >= LastStep {
		return false
	}
	s.completed[s.active] = struct{}{}
	s.active++
	return true
}

// Back moves to the previous step without touching the completed set.
func (s *Session) Back() bool {
	if s.terminal() || s.active <= domain.StepCompany {
		return false
	}
	s.active--
	return true
}

// CanJumpTo allows completed steps and steps before the active one. The
// terminal details step allows none.
func (s *Session) CanJumpTo(step domain.Step) bool {
	if s.terminal() || !step.Valid() || step == s.active {
		return false
	}
	return s.IsCompleted(step) || step < s.active
}

func (s *Session) JumpTo(step domain.Step) bool {
	if !s.CanJumpTo(step) {
		return false
	}
	s.active = step
	return true
}

// Advance validates the active step and moves forward when every gate
// passes. The report is returned either way so inline errors can be drawn.
func (s *Session) Advance() (bool, validate.Report, Notice) {
	if s.existingView || s.active >= domain.StepSummary {
		return false, validate.Report{Step: s.active}, Notice{}
	}
	report := validate.Step(s.active, s.form, s.ValidationContext())
	s.applyReport(report)
	if !report.OK() {
		n := warning(NoticeFillRequired, "")
		n.Fields = report.Failed()
		return false, report, n
	}
	if s.active == domain.StepCompany {
		if !s.validated {
			return false, report, warning(NoticeValidateFirst, "")
		}
		if s.HasActiveSR() {
			return false, report, info(NoticeExistingSR, s.existing.IncidentNumber)
		}
	}
	return s.Next(), report, Notice{}
}

func (s *Session) applyReport(r validate.Report) {
	for field, code := range r.Errors {
		if code == validate.OK {
			delete(s.fieldErrs, field)
			continue
		}
		s.fieldErrs[field] = code
	}
}

// DetailsRequest identifies one SR details load. Results for an older
// request are dropped.
type DetailsRequest struct {
	gen        uint64
	IncidentID string
	CRNumber   string
}

// EnterExistingSRView switches to the terminal details step. The caller
// runs the details fetch for the returned request.
func (s *Session) EnterExistingSRView(info domain.ExistingSR) (DetailsRequest, bool) {
	if s.existingView {
		return DetailsRequest{}, false
	}
	cp := info
	if cp.CRNumber == "" {
		cp.CRNumber = s.form.CRNumber
	}
	s.existing = &cp
	s.existingView = true
	s.completed = map[domain.Step]struct{}{}
	s.active = LastStep
	s.details = nil
	s.loadingDetails = true
	s.detailsGen++
	return DetailsRequest{gen: s.detailsGen, IncidentID: cp.IncidentID, CRNumber: cp.CRNumber}, true
}

// ApplySRDetails stores a details load result. A failure leaves the active
// step where it is.
func (s *Session) ApplySRDetails(req DetailsRequest, d domain.SRDetails, err error) Notice {
	if !s.loadingDetails || req.gen != s.detailsGen {
		return Notice{}
	}
	s.loadingDetails = false
	if err != nil {
		n := failure(NoticeDetailsFailed, err.Error())
		n.AutoDismiss = DetailsNoticeDelay
		return n
	}
	cp := d
	s.details = &cp
	return Notice{}
}

// ResetToHome discards the session's form and navigation state. It is the
// only way out of the existing-SR view.
func (s *Session) ResetToHome() {
	s.resetState()
}

// SetText stores a typed value after the field's input filter and returns
// the stored value. Date and year fields are parsed from their text form.
func (s *Session) SetText(field domain.Field, raw string) (string, error) {
	if field.Derived() {
		return s.form.Display(field), ErrReadOnly
	}
	if field.Identity() && s.validated {
		return s.form.Display(field), ErrLocked
	}
	switch {
	case field.Date():
		t, err := domain.ParseDate(raw)
		if err != nil {
			s.form.SetDate(field, time.Time{})
			s.touched[field] = true
			s.fieldErrs[field] = validate.Date
			return raw, err
		}
		return raw, s.SetDate(field, t)
	case field == domain.FieldYearsToRenew:
		y, err := domain.ParseYearsToRenew(raw)
		if err != nil {
			s.fieldErrs[field] = validate.InvalidChoice
			return s.form.Display(field), err
		}
		return s.form.Display(field), s.SetYearsToRenew(y)
	case field == domain.FieldBankCode:
		code := validate.Sanitize(field, raw)
		return code, s.SetBankCode(code)
	}

	v := validate.Sanitize(field, raw)
	prev := s.form.Text(field)
	if !s.form.SetText(field, v) {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	s.touched[field] = true
	delete(s.fieldErrs, field)
	if field == domain.FieldCRNumber && v != prev {
		s.existing = nil
		s.match = nil
	}
	s.form.Rederive(s.UnitRate)
	return v, nil
}

func (s *Session) SetDate(field domain.Field, t time.Time) error {
	if !field.Date() {
		return fmt.Errorf("%w: %s is not a date", ErrUnknownField, field)
	}
	if field.Identity() && s.validated {
		return ErrLocked
	}
	s.form.SetDate(field, t)
	s.touched[field] = true
	delete(s.fieldErrs, field)
	s.form.Rederive(s.UnitRate)
	return nil
}

func (s *Session) SetYearsToRenew(y domain.YearsToRenew) error {
	if y != domain.YearsUnset && !y.Valid() {
		return fmt.Errorf("years to renew must be 1 or 2, got %d", y)
	}
	s.form.YearsToRenew = y
	s.touched[domain.FieldYearsToRenew] = true
	delete(s.fieldErrs, domain.FieldYearsToRenew)
	s.form.Rederive(s.UnitRate)
	return nil
}

// SetBankCode stores a bank code. Empty clears the selection, anything else
// must resolve in the directory. An unresolved code clears the selection
// and leaves an UnknownBank error that only a valid code removes.
func (s *Session) SetBankCode(code string) error {
	code = strings.TrimSpace(code)
	if code != "" && !s.banks.Contains(code) {
		s.form.BankCode = ""
		s.touched[domain.FieldBankCode] = true
		s.fieldErrs[domain.FieldBankCode] = validate.UnknownBank
		return fmt.Errorf("%w: %q", ErrUnknownBank, code)
	}
	s.form.BankCode = code
	s.touched[domain.FieldBankCode] = true
	delete(s.fieldErrs, domain.FieldBankCode)
	return nil
}

// Blur runs the field's rule and records the inline error.
func (s *Session) Blur(field domain.Field) validate.Code {
	switch code := s.fieldErrs[field]; code {
	case validate.Date, validate.UnknownBank:
		return code
	}
	code := validate.Field(field, s.form, s.ValidationContext())
	if code == validate.OK {
		delete(s.fieldErrs, field)
	} else {
		s.fieldErrs[field] = code
	}
	return code
}

// ResetCompany unlocks the identity fields and drops everything derived
// from the last validation.
func (s *Session) ResetCompany() {
	if s.existingView {
		return
	}
	s.validated = false
	s.match = nil
	s.pending = nil
	s.existing = nil
	s.form.CompanyName = ""
	s.form.Degree = ""
	s.form.IsSME = false
	s.form.SMEType = domain.SMETypeNone
	s.form.IsRiyadaRegistered = false
	s.form.RiyadaExpiry = time.Time{}
	s.form.YearsToRenew = domain.YearsUnset
	s.completed = map[domain.Step]struct{}{}
	s.active = domain.StepCompany
	for _, f := range validate.StepFields(domain.StepCompany) {
		delete(s.fieldErrs, f)
	}
	s.form.Rederive(s.UnitRate)
}

// BeginCompanyValidation checks the validate-company preconditions and
// returns the query to send.
func (s *Session) BeginCompanyValidation() (gateway.CompanyQuery, Notice, bool) {
	if s.existingView || s.validated || s.pending != nil {
		return gateway.CompanyQuery{}, Notice{}, false
	}
	report := validate.Fields(domain.StepCompany, validate.IdentityFields(), s.form, s.ValidationContext())
	s.applyReport(report)
	if !report.OK() {
		n := warning(NoticeFillRequired, "")
		n.Fields = report.Failed()
		return gateway.CompanyQuery{}, n, false
	}
	q := gateway.CompanyQuery{
		CRNumber:   s.form.CRNumber,
		OCCINumber: s.form.OCCINumber,
		Expiry:     s.form.OCCIExpiry,
	}
	s.pending = &q
	return q, Notice{}, true
}

func sameQuery(a, b gateway.CompanyQuery) bool {
	return a.CRNumber == b.CRNumber && a.OCCINumber == b.OCCINumber && a.Expiry.Equal(b.Expiry)
}

// ApplyCompanyOutcome interprets a validate-company result. Results for a
// query that no longer matches the form are ignored.
func (s *Session) ApplyCompanyOutcome(o CompanyOutcome) Notice {
	if s.pending == nil || !sameQuery(*s.pending, o.Query) {
		return Notice{}
	}
	s.pending = nil
	current := gateway.CompanyQuery{CRNumber: s.form.CRNumber, OCCINumber: s.form.OCCINumber, Expiry: s.form.OCCIExpiry}
	if !sameQuery(current, o.Query) {
		return Notice{}
	}

	switch {
	case errors.Is(o.Err, gateway.ErrOCCINull):
		s.fieldErrs[domain.FieldCRNumber] = validate.InvalidCR
		return failure(NoticeInvalidCR, "", domain.FieldCRNumber)
	case o.Err != nil:
		return warning(NoticeAPIError, o.Err.Error())
	case !o.Match.AllMatch():
		failed := o.Match.Failed()
		for _, f := range failed {
			s.fieldErrs[f] = validate.Mismatch
		}
		return failure(NoticeCompanyMismatch, "", failed...)
	}

	m := o.Match
	s.form.CompanyName = s.Lang.Pick(m.NameEn, m.NameAr)
	s.form.Degree = strings.TrimSpace(m.GradeDescEn)
	s.form.IsSME = m.IsSMERegistered
	s.form.SMEType = strings.TrimSpace(m.SMETypeName)
	s.form.IsRiyadaRegistered = m.IsRiyadaCard
	if m.IsRiyadaCard && !m.RiyadaCardExpiry.IsZero() {
		s.form.RiyadaExpiry = m.RiyadaCardExpiry
	}
	s.form.Rederive(s.UnitRate)
	s.validated = true
	s.match = &m
	for _, f := range validate.IdentityFields() {
		delete(s.fieldErrs, f)
	}

	if o.Existing.HasActiveSR {
		ex := o.Existing
		if ex.CRNumber == "" {
			ex.CRNumber = o.Query.CRNumber
		}
		s.existing = &ex
		return info(NoticeExistingSR, ex.IncidentNumber)
	}
	s.existing = nil
	return Notice{Kind: NoticeSuccess, Code: NoticeCompanyValidated, AutoDismiss: DefaultNoticeDelay}
}

// PrimaryAction is the single action enabled for the current state.
func (s *Session) PrimaryAction() Action {
	switch {
	case s.existingView:
		return ActionHome
	case s.active == domain.StepCompany && !s.validated:
		return ActionValidate
	case s.active == domain.StepCompany && s.HasActiveSR():
		return ActionViewExistingSR
	case s.active == domain.StepSummary:
		return ActionSubmit
	case s.active == domain.StepSRDetails:
		return ActionHome
	default:
		return ActionNext
	}
}

// PrepareSubmission checks every precondition and builds the payload. The
// session is not modified.
func (s *Session) PrepareSubmission(captchaVerified bool) (gateway.Registration, error) {
	if s.existingView {
		return gateway.Registration{}, ErrExistingSRView
	}
	if s.details != nil {
		return gateway.Registration{}, ErrAlreadySubmitted
	}
	if s.active != domain.StepSummary {
		return gateway.Registration{}, fmt.Errorf("%w: active step is %s", ErrStepsIncomplete, s.active)
	}
	if !s.validated || s.HasActiveSR() {
		return gateway.Registration{}, fmt.Errorf("%w: company is not validated", ErrStepsIncomplete)
	}
	ctx := s.ValidationContext()
	for step := domain.StepCompany; step < domain.StepSummary; step++ {
		if !s.IsCompleted(step) {
			return gateway.Registration{}, fmt.Errorf("%w: %s", ErrStepsIncomplete, step)
		}
		if r := validate.Step(step, s.form, ctx); !r.OK() {
			return gateway.Registration{}, fmt.Errorf("%w: %s has invalid fields", ErrStepsIncomplete, step)
		}
	}
	if !captchaVerified {
		return gateway.Registration{}, ErrCaptchaUnverified
	}

	f := s.form
	f.Rederive(s.UnitRate)
	reg := gateway.Registration{
		CRNumber:              f.CRNumber,
		OCCINumber:            f.OCCINumber,
		OCCIExpiry:            domain.FormatDate(f.OCCIExpiry),
		CompanyName:           f.CompanyName,
		Degree:                f.Degree,
		IsSME:                 f.IsSME,
		SMEType:               f.SMEType,
		IsRiyadaRegistered:    f.IsRiyadaRegistered,
		YearsToRenew:          int(f.YearsToRenew),
		Fees:                  domain.FormatFees(f.Fees),
		RentContractNumber:    f.RentContractNumber,
		LicenseNumber:         f.LicenseNumber,
		TaxRegistrationNumber: f.TaxRegistrationNumber,
		BeneficiaryNumber:     f.BeneficiaryNumber,
		POBox:                 f.POBox,
		PostalCode:            f.PostalCode,
		Phone:                 f.Phone,
		Fax:                   f.Fax,
		Mobile:                f.Mobile,
		Email:                 strings.TrimSpace(f.Email),
		BankCode:              f.BankCode,
		BankName:              s.banks.Name(f.BankCode, s.Lang),
		AccountNumber:         f.AccountNumber,
		Language:              string(s.Lang),
	}
	if f.IsRiyadaRegistered {
		reg.RiyadaExpiry = domain.FormatDate(f.RiyadaExpiry)
	}
	return reg, nil
}

// ApplySubmission records a submission result. Failures leave the form and
// navigation untouched so the user can retry.
func (s *Session) ApplySubmission(o SubmitOutcome) Notice {
	if o.Err != nil {
		return failure(NoticeSubmitFailed, o.Err.Error())
	}
	if s.active != domain.StepSummary || s.terminal() {
		return Notice{}
	}
	d := o.Details
	s.details = &d
	s.completed[domain.StepSummary] = struct{}{}
	s.active = domain.StepSRDetails
	kind, code := NoticeSuccess, NoticeSRCreated
	if d.Existing() {
		kind, code = NoticeInfo, NoticeSRExisting
	}
	return Notice{Kind: kind, Code: code, Detail: d.IncidentNumber, AutoDismiss: DetailsNoticeDelay}
}
