package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/validate"
)

func TestNextClampsAtLastStep(t *testing.T) {
	s := NewSession(Options{})
	for i := 0; i < int(domain.StepCount)+2; i++ {
		s.Next()
	}
	if s.Active() != LastStep {
		t.Fatalf("active = %s, want %s", s.Active(), LastStep)
	}
	before := s.Completed()
	if s.Next() {
		t.Fatal("Next at the last step must be a no-op")
	}
	if s.Active() != LastStep {
		t.Fatalf("active moved to %s", s.Active())
	}
	if diff := cmp.Diff(before, s.Completed()); diff != "" {
		t.Fatalf("completed changed (-before +after):\n%s", diff)
	}
}

func TestNextCompletesStepOnce(t *testing.T) {
	s := NewSession(Options{})
	s.Next()
	s.Back()
	s.Next()
	if diff := cmp.Diff([]domain.Step{domain.StepCompany}, s.Completed()); diff != "" {
		t.Fatalf("completed (-want +got):\n%s", diff)
	}
	s.Next()
	if diff := cmp.Diff([]domain.Step{domain.StepCompany, domain.StepContract}, s.Completed()); diff != "" {
		t.Fatalf("completed (-want +got):\n%s", diff)
	}
}

func TestBackKeepsCompletedAndClamps(t *testing.T) {
	s := NewSession(Options{})
	if s.Back() {
		t.Fatal("Back at step 0 must be a no-op")
	}
	s.Next()
	s.Next()
	s.Back()
	if s.Active() != domain.StepContract {
		t.Fatalf("active = %s", s.Active())
	}
	if !s.IsCompleted(domain.StepContract) {
		t.Fatal("Back must not remove the step it leaves from the completed set")
	}
}

func TestJumpToRules(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(*Session)
		target domain.Step
		want   bool
		active domain.Step
	}{
		{"same step is a no-op", func(s *Session) {}, domain.StepCompany, false, domain.StepCompany},
		{"future step rejected", func(s *Session) {}, domain.StepPayment, false, domain.StepCompany},
		{"earlier step allowed", func(s *Session) { s.Next(); s.Next() }, domain.StepCompany, true, domain.StepCompany},
		{"completed future step allowed", func(s *Session) { s.Next(); s.Next(); s.Back(); s.Back() }, domain.StepContract, true, domain.StepContract},
		{"invalid step rejected", func(s *Session) { s.Next() }, domain.Step(42), false, domain.StepContract},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession(Options{})
			tc.setup(s)
			if got := s.JumpTo(tc.target); got != tc.want {
				t.Fatalf("JumpTo(%s) = %v, want %v", tc.target, got, tc.want)
			}
			if s.Active() != tc.active {
				t.Fatalf("active = %s, want %s", s.Active(), tc.active)
			}
		})
	}
}

func TestJumpToRejectedInExistingSRView(t *testing.T) {
	s := NewSession(Options{})
	s.Next()
	s.Next()
	s.EnterExistingSRView(domain.ExistingSR{HasActiveSR: true, IncidentID: "1"})
	for step := domain.Step(-1); step <= domain.StepCount; step++ {
		before := s.Active()
		if s.JumpTo(step) {
			t.Fatalf("JumpTo(%d) accepted in existing SR view", step)
		}
		if s.Active() != before || len(s.Completed()) != 0 {
			t.Fatalf("JumpTo(%d) changed state", step)
		}
	}
	if s.Next() || s.Back() {
		t.Fatal("navigation must be locked in existing SR view")
	}
	if s.PrimaryAction() != ActionHome {
		t.Fatalf("primary action = %s", s.PrimaryAction())
	}
}

func TestResetToHomeLeavesExistingSRView(t *testing.T) {
	s := NewSession(Options{})
	mustSet(t, s, domain.FieldCRNumber, "42")
	req, _ := s.EnterExistingSRView(domain.ExistingSR{HasActiveSR: true, IncidentID: "9"})
	s.ResetToHome()
	if s.ExistingSRView() || s.Active() != domain.StepCompany || len(s.Completed()) != 0 {
		t.Fatalf("reset left view=%v active=%s completed=%v", s.ExistingSRView(), s.Active(), s.Completed())
	}
	if s.Form().CRNumber != "" {
		t.Fatal("reset must install an empty form")
	}
	if n := s.ApplySRDetails(req, domain.SRDetails{IncidentID: "9"}, nil); !n.Empty() {
		t.Fatalf("stale details produced notice %+v", n)
	}
	if _, ok := s.SRDetails(); ok {
		t.Fatal("details from before reset must be dropped")
	}
}

func TestSMETypeIsDashWhenNotSME(t *testing.T) {
	mem := testMemory()
	mem.AddCompany(gateway.MemoryCompany{
		CRNumber: "777", OCCINumber: "1", OCCIExpiry: "2027-01-01",
		NameEn: "Small Co", SME: true, SMEType: "Micro",
	})

	s := NewSession(Options{})
	if s.Form().SMEType != domain.SMETypeNone {
		t.Fatalf("initial smeType = %q", s.Form().SMEType)
	}
	if _, err := s.SetText(domain.FieldSMEType, "Micro"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("smeType must be read-only, got %v", err)
	}

	enterIdentity(t, s)
	validateCompany(t, s, mem)
	if f := s.Form(); f.IsSME || f.SMEType != domain.SMETypeNone {
		t.Fatalf("non-SME company gave isSme=%v smeType=%q", f.IsSME, f.SMEType)
	}

	s.ResetCompany()
	mustSet(t, s, domain.FieldCRNumber, "777")
	mustSet(t, s, domain.FieldOCCINumber, "1")
	mustSet(t, s, domain.FieldOCCIExpiry, "2027-01-01")
	validateCompany(t, s, mem)
	if f := s.Form(); !f.IsSME || f.SMEType != "Micro" {
		t.Fatalf("SME company gave isSme=%v smeType=%q", f.IsSME, f.SMEType)
	}

	s.ResetCompany()
	if f := s.Form(); f.IsSME || f.SMEType != domain.SMETypeNone {
		t.Fatalf("after reset isSme=%v smeType=%q", f.IsSME, f.SMEType)
	}
}

func TestSetTextSanitizesAndLocks(t *testing.T) {
	s := NewSession(Options{})
	got, err := s.SetText(domain.FieldPhone, "(968) 2456-78901")
	if err != nil || got != "96824567" {
		t.Fatalf("phone = %q, %v", got, err)
	}
	if code := s.Blur(domain.FieldPhone); code != validate.OK {
		t.Fatalf("phone blur = %q", code)
	}
	mustSet(t, s, domain.FieldFax, "12-34")
	if code := s.Blur(domain.FieldFax); code != validate.Length {
		t.Fatalf("fax blur = %q", code)
	}

	if _, err := s.SetText(domain.FieldOCCIExpiry, "31/31/2026"); err == nil {
		t.Fatal("bad date accepted")
	}
	if s.FieldError(domain.FieldOCCIExpiry) != validate.Date {
		t.Fatalf("date error = %q", s.FieldError(domain.FieldOCCIExpiry))
	}

	if _, err := s.SetText(domain.FieldCompanyName, "x"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("companyName err = %v", err)
	}
	if _, err := s.SetText(domain.FieldFees, "1"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("fees err = %v", err)
	}
	if err := s.SetBankCode("nope"); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("bank err = %v", err)
	}
	if s.Form().BankCode != "" {
		t.Fatal("unknown bank code was stored")
	}

	enterIdentity(t, s)
	validateCompany(t, s, testMemory())
	if _, err := s.SetText(domain.FieldCRNumber, "1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("cr err = %v", err)
	}
	if s.Form().CRNumber != testCR {
		t.Fatal("locked CR changed")
	}
	s.ResetCompany()
	mustSet(t, s, domain.FieldCRNumber, "1")
}

func TestFeesFollowYears(t *testing.T) {
	s := NewSession(Options{})
	if err := s.SetYearsToRenew(domain.YearsTwo); err != nil {
		t.Fatal(err)
	}
	if got := domain.FormatFees(s.Form().Fees); got != "100.000" {
		t.Fatalf("fees = %s", got)
	}
	if err := s.SetYearsToRenew(domain.YearsToRenew(3)); err == nil {
		t.Fatal("3 years accepted")
	}
	if _, err := s.SetText(domain.FieldYearsToRenew, "1"); err != nil {
		t.Fatal(err)
	}
	if got := domain.FormatFees(s.Form().Fees); got != "50.000" {
		t.Fatalf("fees = %s", got)
	}
}

func TestBeginCompanyValidationNeedsIdentity(t *testing.T) {
	s := NewSession(Options{})
	mustSet(t, s, domain.FieldCRNumber, "12")
	_, n, ok := s.BeginCompanyValidation()
	if ok {
		t.Fatal("validation started without OCCI fields")
	}
	if n.Code != NoticeFillRequired {
		t.Fatalf("notice = %+v", n)
	}
	want := []domain.Field{domain.FieldOCCINumber, domain.FieldOCCIExpiry}
	if diff := cmp.Diff(want, n.Fields); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
	if s.FieldError(domain.FieldOCCINumber) != validate.Required {
		t.Fatal("missing OCCI number not marked")
	}
}

func TestCompanyMismatchListsFailedChecks(t *testing.T) {
	s := NewSession(Options{})
	mustSet(t, s, domain.FieldCRNumber, testCR)
	mustSet(t, s, domain.FieldOCCINumber, "111")
	mustSet(t, s, domain.FieldOCCIExpiry, "2030-01-01")
	n := validateCompany(t, s, testMemory())
	if n.Code != NoticeCompanyMismatch || n.Kind != NoticeError {
		t.Fatalf("notice = %+v", n)
	}
	if diff := cmp.Diff([]domain.Field{domain.FieldOCCINumber, domain.FieldOCCIExpiry}, n.Fields); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
	if s.CompanyValidated() || s.Form().CompanyName != "" {
		t.Fatal("mismatch must not populate or validate")
	}
	if s.FieldError(domain.FieldOCCINumber) != validate.Mismatch {
		t.Fatal("mismatch not marked inline")
	}
}

func TestOCCINullMarksCRInvalid(t *testing.T) {
	s := NewSession(Options{})
	mustSet(t, s, domain.FieldCRNumber, "404")
	mustSet(t, s, domain.FieldOCCINumber, "1")
	mustSet(t, s, domain.FieldOCCIExpiry, "2030-01-01")
	n := validateCompany(t, s, testMemory())
	if n.Code != NoticeInvalidCR {
		t.Fatalf("notice = %+v", n)
	}
	if s.FieldError(domain.FieldCRNumber) != validate.InvalidCR {
		t.Fatalf("cr error = %q", s.FieldError(domain.FieldCRNumber))
	}
	if s.ValidatingCompany() {
		t.Fatal("pending flag left set")
	}
}

func TestStaleCompanyOutcomeIgnored(t *testing.T) {
	s := NewSession(Options{})
	enterIdentity(t, s)
	q, _, _ := s.BeginCompanyValidation()
	mustSet(t, s, domain.FieldCRNumber, "55")
	o := NewChecker(testMemory(), nil).Validate(context.Background(), q)
	if n := s.ApplyCompanyOutcome(o); !n.Empty() {
		t.Fatalf("stale outcome produced %+v", n)
	}
	if s.CompanyValidated() {
		t.Fatal("stale outcome validated the company")
	}
}

func TestCompanyNamePicksLanguage(t *testing.T) {
	s := NewSession(Options{Language: domain.LanguageArabic})
	enterIdentity(t, s)
	validateCompany(t, s, testMemory())
	if got := s.Form().CompanyName; got != "أكمي للتجارة" {
		t.Fatalf("companyName = %q", got)
	}
}

func TestExistingSRCheckFailureIsSwallowed(t *testing.T) {
	mem := testMemory()
	mem.FailWith("CheckExistingSR", errors.New("boom"))
	s := NewSession(Options{})
	enterIdentity(t, s)
	if n := validateCompany(t, s, mem); n.Code != NoticeCompanyValidated {
		t.Fatalf("notice = %+v", n)
	}
	if s.HasActiveSR() || s.PrimaryAction() != ActionNext {
		t.Fatalf("active SR = %v, action = %s", s.HasActiveSR(), s.PrimaryAction())
	}
}

func TestAdvanceGates(t *testing.T) {
	s := NewSession(Options{})
	ok, report, n := s.Advance()
	if ok || report.OK() || n.Code != NoticeFillRequired {
		t.Fatalf("empty company step advanced: ok=%v notice=%+v", ok, n)
	}

	enterIdentity(t, s)
	ok, _, n = s.Advance()
	if ok || n.Code != NoticeValidateFirst {
		t.Fatalf("unvalidated company advanced: ok=%v notice=%+v", ok, n)
	}

	validateCompany(t, s, testMemory())
	ok, report, _ = s.Advance()
	if ok || report.Errors[domain.FieldYearsToRenew] != validate.Required {
		t.Fatalf("years not required after validation: ok=%v errors=%v", ok, report.Errors)
	}
}

func TestPrepareSubmissionPreconditions(t *testing.T) {
	mem := testMemory()
	s := NewSession(Options{})
	if _, err := s.PrepareSubmission(true); !errors.Is(err, ErrStepsIncomplete) {
		t.Fatalf("err = %v", err)
	}
	toSummary(t, s, mem, domain.YearsOne)
	if _, err := s.PrepareSubmission(false); !errors.Is(err, ErrCaptchaUnverified) {
		t.Fatalf("err = %v", err)
	}
	reg, err := s.PrepareSubmission(true)
	if err != nil {
		t.Fatal(err)
	}
	want := gateway.Registration{
		CRNumber:              testCR,
		OCCINumber:            testOCCI,
		OCCIExpiry:            "2026-01-01",
		CompanyName:           "Acme Trading",
		Degree:                "First",
		SMEType:               domain.SMETypeNone,
		YearsToRenew:          1,
		Fees:                  "50.000",
		RentContractNumber:    "RC-1",
		LicenseNumber:         "L-1",
		TaxRegistrationNumber: "1234",
		BeneficiaryNumber:     "5678",
		POBox:                 "112",
		PostalCode:            "130",
		Phone:                 "24567890",
		Fax:                   "24567891",
		Mobile:                "91234567",
		Email:                 "accounts@acme.om",
		BankCode:              "78",
		BankName:              "Bank Muscat",
		AccountNumber:         "0301012345670011",
		Language:              "en",
	}
	if diff := cmp.Diff(want, reg); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
}

func TestSetBanksMigratesLegacyName(t *testing.T) {
	s := NewSession(Options{Banks: domain.NewBankDirectory(nil, domain.BankSourceRemote)})
	s.form.BankCode = "bank muscat"
	s.SetBanks(domain.FallbackBankDirectory())
	if s.Form().BankCode != "78" {
		t.Fatalf("bank code = %q", s.Form().BankCode)
	}
}

func TestSubmittedDetailsStepIsExitOnly(t *testing.T) {
	mem := testMemory()
	s := NewSession(Options{})
	toSummary(t, s, mem, domain.YearsOne)
	reg, err := s.PrepareSubmission(true)
	if err != nil {
		t.Fatal(err)
	}
	if n := s.ApplySubmission(NewSubmitter(mem, nil).Submit(context.Background(), reg, nil)); n.Code != NoticeSRCreated {
		t.Fatalf("notice = %+v", n)
	}

	for step := domain.StepCompany; step <= domain.StepSummary; step++ {
		if s.JumpTo(step) {
			t.Fatalf("JumpTo(%s) accepted after submission", step)
		}
	}
	if s.Back() || s.Next() {
		t.Fatal("navigation accepted after submission")
	}
	if s.Active() != domain.StepSRDetails || s.PrimaryAction() != ActionHome {
		t.Fatalf("active=%s primary=%s", s.Active(), s.PrimaryAction())
	}
	if _, err := s.PrepareSubmission(true); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v", err)
	}

	s.ResetToHome()
	if s.Active() != domain.StepCompany {
		t.Fatalf("active after home = %s", s.Active())
	}
	if _, ok := s.SRDetails(); ok {
		t.Fatal("details kept after home")
	}
}

func TestUnknownBankCodeBlocksAdvance(t *testing.T) {
	s := NewSession(Options{})
	enterIdentity(t, s)
	validateCompany(t, s, testMemory())
	if err := s.SetYearsToRenew(domain.YearsOne); err != nil {
		t.Fatal(err)
	}
	if ok, r, n := s.Advance(); !ok {
		t.Fatalf("company step: %v %+v", r.Failed(), n)
	}
	fillContract(t, s)
	if ok, r, n := s.Advance(); !ok {
		t.Fatalf("contract step: %v %+v", r.Failed(), n)
	}
	fillPayment(t, s)

	if _, err := s.SetText(domain.FieldBankCode, "789"); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("err = %v", err)
	}
	if s.Form().BankCode != "" {
		t.Fatalf("bank code = %q, previous code kept", s.Form().BankCode)
	}
	if got := s.Blur(domain.FieldBankCode); got != validate.UnknownBank {
		t.Fatalf("blur = %q, want %q", got, validate.UnknownBank)
	}
	if ok, _, _ := s.Advance(); ok {
		t.Fatal("advanced with an unresolved bank code")
	}
	if s.Active() != domain.StepPayment {
		t.Fatalf("active = %s", s.Active())
	}

	mustSet(t, s, domain.FieldBankCode, "78")
	if s.FieldError(domain.FieldBankCode) != validate.OK {
		t.Fatalf("error kept after valid code: %q", s.FieldError(domain.FieldBankCode))
	}
	if ok, r, n := s.Advance(); !ok {
		t.Fatalf("payment step: %v %+v", r.Failed(), n)
	}
}
