package wizard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testCR     = "123456789"
	testOCCI   = "987654321"
	testExpiry = "2026-01-01"
)

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func testMemory() *gateway.Memory {
	m := gateway.NewMemory()
	m.AddCompany(gateway.MemoryCompany{
		CRNumber:   testCR,
		OCCINumber: testOCCI,
		OCCIExpiry: testExpiry,
		NameEn:     "Acme Trading",
		NameAr:     "أكمي للتجارة",
		Grade:      "First",
		Record: &domain.CompanyRecord{
			ContractNumber: "RC-1",
			LicenseNumber:  "L-77",
			Phone:          "2456-7890",
			Email:          "info@acme.om",
			BankCode:       "78",
			YearsToRenew:   2,
			Fees:           "999.000",
		},
	})
	return m
}

// stubGateway overrides selected calls on top of an in-memory backend.
type stubGateway struct {
	*gateway.Memory

	release   map[string]chan struct{}
	bankCalls atomic.Int32
	bankGate  chan struct{}
	banks     []domain.Bank
	created   *domain.SRDetails
}

func (g *stubGateway) CompanyByCR(ctx context.Context, crNumber string) (domain.CompanyRecord, error) {
	if ch, ok := g.release[crNumber]; ok {
		// Simulates a response already on the wire when the fetch is superseded.
		<-ch
		ctx = context.WithoutCancel(ctx)
	}
	return g.Memory.CompanyByCR(ctx, crNumber)
}

func (g *stubGateway) BankList(ctx context.Context) ([]domain.Bank, error) {
	g.bankCalls.Add(1)
	if g.bankGate != nil {
		<-g.bankGate
	}
	return g.banks, nil
}

func (g *stubGateway) CreateOrFetchSR(ctx context.Context, reg gateway.Registration) (domain.SRDetails, error) {
	if g.created != nil {
		return *g.created, nil
	}
	return g.Memory.CreateOrFetchSR(ctx, reg)
}

func mustSet(t *testing.T, s *Session, field domain.Field, raw string) {
	t.Helper()
	if _, err := s.SetText(field, raw); err != nil {
		t.Fatalf("SetText(%s, %q): %v", field, raw, err)
	}
}

func validateCompany(t *testing.T, s *Session, gw gateway.Gateway) Notice {
	t.Helper()
	q, n, ok := s.BeginCompanyValidation()
	if !ok {
		t.Fatalf("validation did not start: %+v", n)
	}
	return s.ApplyCompanyOutcome(NewChecker(gw, nil).Validate(context.Background(), q))
}

func enterIdentity(t *testing.T, s *Session) {
	t.Helper()
	mustSet(t, s, domain.FieldCRNumber, testCR)
	mustSet(t, s, domain.FieldOCCINumber, testOCCI)
	mustSet(t, s, domain.FieldOCCIExpiry, testExpiry)
}

func fillContract(t *testing.T, s *Session) {
	t.Helper()
	for f, v := range map[domain.Field]string{
		domain.FieldRentContractNumber:    "RC-1",
		domain.FieldLicenseNumber:         "L-1",
		domain.FieldTaxRegistrationNumber: "1234",
		domain.FieldBeneficiaryNumber:     "5678",
		domain.FieldPOBox:                 "112",
		domain.FieldPostalCode:            "130",
		domain.FieldPhone:                 "24567890",
		domain.FieldFax:                   "24567891",
	} {
		mustSet(t, s, f, v)
	}
}

func fillPayment(t *testing.T, s *Session) {
	t.Helper()
	mustSet(t, s, domain.FieldMobile, "91234567")
	mustSet(t, s, domain.FieldEmail, "accounts@acme.om")
	mustSet(t, s, domain.FieldBankCode, "78")
	mustSet(t, s, domain.FieldAccountNumber, "0301012345670011")
}

// toSummary walks a fresh session through the first three steps.
func toSummary(t *testing.T, s *Session, gw gateway.Gateway, years domain.YearsToRenew) {
	t.Helper()
	enterIdentity(t, s)
	if n := validateCompany(t, s, gw); n.Code != NoticeCompanyValidated {
		t.Fatalf("validate notice = %+v", n)
	}
	if err := s.SetYearsToRenew(years); err != nil {
		t.Fatal(err)
	}
	steps := []func(*testing.T, *Session){nil, fillContract, fillPayment}
	for _, fill := range steps {
		if fill != nil {
			fill(t, s)
		}
		if ok, r, n := s.Advance(); !ok {
			t.Fatalf("advance from %s failed: %v %+v", s.Active(), r.Failed(), n)
		}
	}
	if s.Active() != domain.StepSummary {
		t.Fatalf("active = %s, want summary", s.Active())
	}
}
