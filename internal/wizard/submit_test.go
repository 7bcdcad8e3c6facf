package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
)

func TestScenarioValidateThenNext(t *testing.T) {
	mem := testMemory()
	s := NewSession(Options{})
	enterIdentity(t, s)
	if s.PrimaryAction() != ActionValidate {
		t.Fatalf("primary action = %s", s.PrimaryAction())
	}

	n := validateCompany(t, s, mem)
	if n.Code != NoticeCompanyValidated {
		t.Fatalf("notice = %+v", n)
	}
	f := s.Form()
	if f.IsSME || f.SMEType != "-" {
		t.Fatalf("isSme=%v smeType=%q", f.IsSME, f.SMEType)
	}
	if f.CompanyName != "Acme Trading" || f.Degree != "First" {
		t.Fatalf("derived fields = %q / %q", f.CompanyName, f.Degree)
	}
	if s.PrimaryAction() != ActionNext {
		t.Fatalf("primary action = %s", s.PrimaryAction())
	}

	if err := s.SetYearsToRenew(domain.YearsOne); err != nil {
		t.Fatal(err)
	}
	ok, _, n := s.Advance()
	if !ok {
		t.Fatalf("advance failed: %+v", n)
	}
	if s.Active() != domain.StepContract {
		t.Fatalf("active = %s", s.Active())
	}
	if diff := cmp.Diff([]domain.Step{domain.StepCompany}, s.Completed()); diff != "" {
		t.Fatalf("completed (-want +got):\n%s", diff)
	}
}

func TestScenarioExistingSR(t *testing.T) {
	mem := gateway.NewMemory()
	mem.AddCompany(gateway.MemoryCompany{
		CRNumber:   testCR,
		OCCINumber: testOCCI,
		OCCIExpiry: testExpiry,
		NameEn:     "Acme Trading",
		ActiveSR:   &gateway.MemorySR{IncidentID: "4411", IncidentNumber: "SR-4411", PaymentRequired: true},
	})
	s := NewSession(Options{})
	enterIdentity(t, s)

	n := validateCompany(t, s, mem)
	if n.Code != NoticeExistingSR || n.Detail != "SR-4411" {
		t.Fatalf("notice = %+v", n)
	}
	if s.PrimaryAction() != ActionViewExistingSR {
		t.Fatalf("primary action = %s", s.PrimaryAction())
	}
	if s.Visible(domain.FieldYearsToRenew) {
		t.Fatal("years must not apply when an active SR exists")
	}
	if ok, _, _ := s.Advance(); ok {
		t.Fatal("Next must be blocked by an active SR")
	}

	info, _ := s.ExistingSR()
	req, ok := s.EnterExistingSRView(info)
	if !ok {
		t.Fatal("could not enter existing SR view")
	}
	if !s.ExistingSRView() || len(s.Completed()) != 0 || s.Active() != domain.StepSRDetails {
		t.Fatalf("view=%v completed=%v active=%s", s.ExistingSRView(), s.Completed(), s.Active())
	}
	if !s.LoadingDetails() {
		t.Fatal("details load not pending")
	}

	d, err := FetchDetails(context.Background(), mem, req)
	if n := s.ApplySRDetails(req, d, err); !n.Empty() {
		t.Fatalf("details notice = %+v", n)
	}
	got, ok := s.SRDetails()
	if !ok || got.IncidentNumber != "SR-4411" || !got.NeedsPayment() {
		t.Fatalf("details = %+v", got)
	}
}

func TestExistingSRDetailsFailureKeepsStep(t *testing.T) {
	mem := gateway.NewMemory()
	s := NewSession(Options{})
	req, _ := s.EnterExistingSRView(domain.ExistingSR{HasActiveSR: true, IncidentID: "1", CRNumber: "2"})
	d, err := FetchDetails(context.Background(), mem, req)
	n := s.ApplySRDetails(req, d, err)
	if n.Code != NoticeDetailsFailed || n.AutoDismiss != DetailsNoticeDelay {
		t.Fatalf("notice = %+v", n)
	}
	if s.Active() != domain.StepSRDetails || s.LoadingDetails() {
		t.Fatalf("active=%s loading=%v", s.Active(), s.LoadingDetails())
	}
}

func TestFetchDetailsFallsBackToCR(t *testing.T) {
	mem := gateway.NewMemory()
	created, err := mem.CreateOrFetchSR(context.Background(), gateway.Registration{CRNumber: "5"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := FetchDetails(context.Background(), mem, DetailsRequest{IncidentID: "missing", CRNumber: "5"})
	if err != nil || d.IncidentID != created.IncidentID {
		t.Fatalf("details = %+v, %v", d, err)
	}
	if _, err := FetchDetails(context.Background(), mem, DetailsRequest{}); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestScenarioBankFallback(t *testing.T) {
	mem := testMemory()
	mem.FailWith("BankList", errors.New("boom"))
	dir := NewBankLoader(mem, nil).Load(context.Background())
	if diff := cmp.Diff(domain.FallbackBanks(), dir.Banks()); diff != "" {
		t.Fatalf("directory (-fallback +got):\n%s", diff)
	}
	if dir.Len() != 31 {
		t.Fatalf("len = %d", dir.Len())
	}

	s := NewSession(Options{Banks: dir, Language: domain.LanguageArabic})
	mustSet(t, s, domain.FieldBankCode, "78")
	if got := s.Banks().Name(s.Form().BankCode, s.Lang); got != "بنك مسقط" {
		t.Fatalf("ar name = %q", got)
	}
	if got := s.Banks().Name(s.Form().BankCode, domain.LanguageEnglish); got != "Bank Muscat" {
		t.Fatalf("en name = %q", got)
	}
}

func TestScenarioMissingIncidentIDKeepsForm(t *testing.T) {
	rate := decimal.RequireFromString("37.500")
	gw := &stubGateway{
		Memory:  testMemory(),
		created: &domain.SRDetails{StatusCode: gateway.StatusSuccess, PaymentRequired: true},
	}
	s := NewSession(Options{UnitRate: rate})
	toSummary(t, s, gw, domain.YearsTwo)

	reg, err := s.PrepareSubmission(true)
	if err != nil {
		t.Fatal(err)
	}
	if want := domain.FormatFees(rate.Mul(decimal.NewFromInt(2))); reg.Fees != want {
		t.Fatalf("fees = %s, want %s", reg.Fees, want)
	}

	before := s.Form()
	completed := s.Completed()
	o := NewSubmitter(gw, nil).Submit(context.Background(), reg, nil)
	if !errors.Is(o.Err, ErrMissingIncidentID) {
		t.Fatalf("err = %v", o.Err)
	}
	n := s.ApplySubmission(o)
	if n.Code != NoticeSubmitFailed || n.Kind != NoticeError {
		t.Fatalf("notice = %+v", n)
	}
	if diff := cmp.Diff(before, s.Form()); diff != "" {
		t.Fatalf("form changed (-before +after):\n%s", diff)
	}
	if s.Active() != domain.StepSummary || !cmp.Equal(completed, s.Completed()) {
		t.Fatalf("navigation changed: active=%s completed=%v", s.Active(), s.Completed())
	}
	if _, ok := s.SRDetails(); ok {
		t.Fatal("details stored for a failed submission")
	}

	gw.created = nil
	reg, _ = s.PrepareSubmission(true)
	o = NewSubmitter(gw, nil).Submit(context.Background(), reg, nil)
	if o.Err != nil {
		t.Fatalf("retry failed: %v", o.Err)
	}
	if n := s.ApplySubmission(o); n.Code != NoticeSRCreated {
		t.Fatalf("notice = %+v", n)
	}
	if s.Active() != domain.StepSRDetails || !s.IsCompleted(domain.StepSummary) {
		t.Fatalf("active=%s completed=%v", s.Active(), s.Completed())
	}
}

func TestSubmitRejectsUnknownStatus(t *testing.T) {
	gw := &stubGateway{
		Memory:  gateway.NewMemory(),
		created: &domain.SRDetails{IncidentID: "1", StatusCode: "FAILED", Message: "duplicate tax number"},
	}
	o := NewSubmitter(gw, nil).Submit(context.Background(), gateway.Registration{}, nil)
	var se *StatusError
	if !errors.As(o.Err, &se) {
		t.Fatalf("err = %v", o.Err)
	}
	if se.Code != "FAILED" || se.Message != "duplicate tax number" {
		t.Fatalf("status error = %+v", se)
	}
}

func TestSubmitReportsMonotonicProgress(t *testing.T) {
	var seen []Progress
	o := NewSubmitter(gateway.NewMemory(), nil).Submit(context.Background(),
		gateway.Registration{CRNumber: "1"}, func(p Progress) { seen = append(seen, p) })
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	want := []Progress{
		{PhaseValidating, 0.10},
		{PhaseCheckingRecords, 0.40},
		{PhaseFinalizing, 0.80},
		{PhaseDone, 1},
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("progress (-want +got):\n%s", diff)
	}
}

func TestSubmitAlreadyExistsIsExisting(t *testing.T) {
	mem := gateway.NewMemory()
	sub := NewSubmitter(mem, nil)
	sub.Submit(context.Background(), gateway.Registration{CRNumber: "8"}, nil)
	o := sub.Submit(context.Background(), gateway.Registration{CRNumber: "8"}, nil)
	if o.Err != nil || !o.Details.ExistingSR || !o.Details.Existing() {
		t.Fatalf("outcome = %+v", o)
	}
}
