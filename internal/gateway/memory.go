package gateway

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"sr-wizard/internal/domain"
)

// Memory is an in-process backend used by offline mode and tests. It keeps
// the backend's create-or-fetch behaviour: one SR per CR number.
type Memory struct {
	mu sync.Mutex

	banks     []domain.Bank
	companies map[string]MemoryCompany
	srs       map[string]domain.SRDetails
	byCR      map[string]string
	receipts  map[string]domain.Receipt
	nextID    int

	paymentRequired bool
	errs            map[string]error
	calls           map[string]int
}

type MemoryCompany struct {
	CRNumber     string                `yaml:"cr_number"`
	OCCINumber   string                `yaml:"occi_number"`
	OCCIExpiry   string                `yaml:"occi_expiry"`
	OCCINull     bool                  `yaml:"occi_null"`
	NameEn       string                `yaml:"name_en"`
	NameAr       string                `yaml:"name_ar"`
	Grade        string                `yaml:"grade"`
	SME          bool                  `yaml:"sme"`
	SMEType      string                `yaml:"sme_type"`
	Riyada       bool                  `yaml:"riyada"`
	RiyadaExpiry string                `yaml:"riyada_expiry"`
	Record       *domain.CompanyRecord `yaml:"record"`
	ActiveSR     *MemorySR             `yaml:"active_sr"`
}

type MemorySR struct {
	IncidentID       string `yaml:"incident_id"`
	IncidentNumber   string `yaml:"incident_number"`
	StatusLabel      string `yaml:"status_label"`
	PaymentRequired  bool   `yaml:"payment_required"`
	PaymentCompleted bool   `yaml:"payment_completed"`
}

type MemoryReceipt struct {
	SRNumber      string `yaml:"sr_number"`
	ReceiptNumber string `yaml:"receipt_number"`
	AmountPaid    string `yaml:"amount_paid"`
	ReceiptDate   string `yaml:"receipt_date"`
}

type Fixtures struct {
	Version         int             `yaml:"version"`
	PaymentRequired *bool           `yaml:"payment_required"`
	Banks           []domain.Bank   `yaml:"banks"`
	Companies       []MemoryCompany `yaml:"companies"`
	Receipts        []MemoryReceipt `yaml:"receipts"`
}

func NewMemory() *Memory {
	return &Memory{
		companies:       map[string]MemoryCompany{},
		srs:             map[string]domain.SRDetails{},
		byCR:            map[string]string{},
		receipts:        map[string]domain.Receipt{},
		nextID:          1,
		paymentRequired: true,
		errs:            map[string]error{},
		calls:           map[string]int{},
	}
}

func NewMemoryFromFixtures(f Fixtures) *Memory {
	m := NewMemory()
	if f.PaymentRequired != nil {
		m.paymentRequired = *f.PaymentRequired
	}
	m.banks = append(m.banks, f.Banks...)
	for _, c := range f.Companies {
		m.AddCompany(c)
	}
	for _, r := range f.Receipts {
		m.AddReceipt(domain.Receipt{
			IncidentNumber: r.SRNumber,
			ReceiptNumber:  r.ReceiptNumber,
			AmountPaid:     r.AmountPaid,
			ReceiptDate:    r.ReceiptDate,
		})
	}
	return m
}

func LoadFixtures(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return NewMemoryFromFixtures(f), nil
}

// DemoMemory is the dataset behind `--offline` without a fixtures file.
func DemoMemory() *Memory {
	required := true
	return NewMemoryFromFixtures(Fixtures{
		Version:         1,
		PaymentRequired: &required,
		Companies: []MemoryCompany{
			{
				CRNumber:   "1234567",
				OCCINumber: "7654321",
				OCCIExpiry: "2027-06-30",
				NameEn:     "Al Noor Trading LLC",
				NameAr:     "شركة النور للتجارة",
				Grade:      "Excellent",
				SME:        true,
				SMEType:    "Small",
				Record: &domain.CompanyRecord{
					ContractNumber:        "RC-2024-1187",
					LicenseNumber:         "ML-55421",
					TaxRegistrationNumber: "3100456721",
					BeneficiaryNumber:     "88120034",
					POBox:                 "112",
					PostalCode:            "130",
					Phone:                 "24567890",
					Fax:                   "24567891",
					Mobile:                "91234567",
					BankCode:              "78",
					AccountNumber:         "0301012345670011",
					Email:                 "accounts@alnoor.om",
					YearsToRenew:          1,
				},
			},
			{
				CRNumber:   "2345678",
				OCCINumber: "8765432",
				OCCIExpiry: "2026-12-31",
				NameEn:     "Sohar Marine Services",
				NameAr:     "صحار للخدمات البحرية",
				Grade:      "First",
				ActiveSR:   &MemorySR{IncidentID: "300121", IncidentNumber: "SR-300121", StatusLabel: "Open", PaymentRequired: true},
			},
		},
	})
}

func (m *Memory) AddCompany(c MemoryCompany) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.CRNumber] = c
	if c.ActiveSR != nil {
		d := domain.SRDetails{
			IncidentID:       c.ActiveSR.IncidentID,
			IncidentNumber:   c.ActiveSR.IncidentNumber,
			StatusCode:       StatusAlreadyExists,
			StatusLabel:      c.ActiveSR.StatusLabel,
			PaymentRequired:  c.ActiveSR.PaymentRequired,
			PaymentCompleted: c.ActiveSR.PaymentCompleted,
			ExistingSR:       true,
			CompanyID:        c.CRNumber,
			CompanyName:      c.NameEn,
			CRNumber:         c.CRNumber,
			OCCINumber:       c.OCCINumber,
			OCCIExpiryDate:   c.OCCIExpiry,
		}
		m.srs[d.IncidentID] = d
		m.byCR[c.CRNumber] = d.IncidentID
	}
}

func (m *Memory) AddReceipt(r domain.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.IncidentNumber] = r
}

func (m *Memory) SetBanks(banks []domain.Bank) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banks = append([]domain.Bank(nil), banks...)
}

// FailWith makes every later call to op return err. A nil err clears it.
func (m *Memory) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// Calls reports how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) enter(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return &HTTPError{Method: "MEM", Path: op, Err: err}
	}
	return m.errs[op]
}

func (m *Memory) ValidateCompany(ctx context.Context, q CompanyQuery) (domain.CompanyMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ValidateCompany"); err != nil {
		return domain.CompanyMatch{}, err
	}
	c, ok := m.companies[q.CRNumber]
	if !ok || c.OCCINull {
		return domain.CompanyMatch{}, ErrOCCINull
	}
	expiry, _ := domain.ParseDate(c.OCCIExpiry)
	match := domain.CompanyMatch{
		CRMatch:         true,
		OCCINumberMatch: q.OCCINumber == c.OCCINumber,
		ExpiryValid:     !expiry.IsZero() && expiry.Equal(q.Expiry),
		NameEn:          c.NameEn,
		NameAr:          c.NameAr,
		GradeDescEn:     c.Grade,
		IsSMERegistered: c.SME,
		SMETypeName:     c.SMEType,
		IsRiyadaCard:    c.Riyada,
	}
	if t, err := domain.ParseDate(c.RiyadaExpiry); err == nil {
		match.RiyadaCardExpiry = t
	}
	return match, nil
}

func (m *Memory) CompanyByCR(ctx context.Context, crNumber string) (domain.CompanyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CompanyByCR"); err != nil {
		return domain.CompanyRecord{}, err
	}
	c, ok := m.companies[crNumber]
	if !ok || c.Record == nil {
		return domain.CompanyRecord{}, ErrNotFound
	}
	return *c.Record, nil
}

func (m *Memory) CheckExistingSR(ctx context.Context, crNumber string) (domain.ExistingSR, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CheckExistingSR"); err != nil {
		return domain.ExistingSR{}, err
	}
	out := domain.ExistingSR{CRNumber: crNumber}
	id, ok := m.byCR[crNumber]
	if !ok {
		return out, nil
	}
	d := m.srs[id]
	if d.Paid() {
		return out, nil
	}
	out.HasActiveSR = true
	out.IncidentID = d.IncidentID
	out.IncidentNumber = d.IncidentNumber
	return out, nil
}

func (m *Memory) BankList(ctx context.Context) ([]domain.Bank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "BankList"); err != nil {
		return nil, err
	}
	return append([]domain.Bank(nil), m.banks...), nil
}

func (m *Memory) CreateOrFetchSR(ctx context.Context, reg Registration) (domain.SRDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CreateOrFetchSR"); err != nil {
		return domain.SRDetails{}, err
	}
	if id, ok := m.byCR[reg.CRNumber]; ok {
		d := m.srs[id]
		d.ExistingSR = true
		d.StatusCode = StatusAlreadyExists
		d.Message = "service request already exists"
		return d, nil
	}
	n := m.nextID
	m.nextID++
	d := domain.SRDetails{
		IncidentID:         strconv.Itoa(500000 + n),
		IncidentNumber:     fmt.Sprintf("SR-%06d", 500000+n),
		StatusCode:         StatusSuccess,
		StatusLabel:        "Open",
		Message:            "service request created",
		SRType:             "CM: Company Registration",
		PaymentRequired:    m.paymentRequired,
		CompanyID:          reg.CRNumber,
		CompanyName:        reg.CompanyName,
		CRNumber:           reg.CRNumber,
		OCCINumber:         reg.OCCINumber,
		OCCIExpiryDate:     reg.OCCIExpiry,
		Degree:             reg.Degree,
		YearsToRenew:       strconv.Itoa(reg.YearsToRenew),
		IsSME:              reg.IsSME,
		SMEType:            reg.SMEType,
		IsRiyadaRegistered: reg.IsRiyadaRegistered,
		RiyadaExpiryDate:   reg.RiyadaExpiry,
		BankCode:           reg.BankCode,
		BankAccountNumber:  maskAccount(reg.AccountNumber),
		Fees:               reg.Fees,
	}
	m.srs[d.IncidentID] = d
	m.byCR[reg.CRNumber] = d.IncidentID
	return d, nil
}

func maskAccount(v string) string {
	if len(v) <= 4 {
		return v
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func (m *Memory) SRDetailsByCR(ctx context.Context, crNumber string) (domain.SRDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "SRDetailsByCR"); err != nil {
		return domain.SRDetails{}, err
	}
	id, ok := m.byCR[crNumber]
	if !ok {
		return domain.SRDetails{}, ErrNotFound
	}
	return m.srs[id], nil
}

func (m *Memory) SRDetailsByIncidentID(ctx context.Context, incidentID string) (domain.SRDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "SRDetailsByIncidentID"); err != nil {
		return domain.SRDetails{}, err
	}
	d, ok := m.srs[incidentID]
	if !ok {
		return domain.SRDetails{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) ReceiptBySRNumber(ctx context.Context, srNumber string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ReceiptBySRNumber"); err != nil {
		return domain.Receipt{}, err
	}
	r, ok := m.receipts[srNumber]
	if !ok {
		return domain.Receipt{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ReceiptByIncidentID(ctx context.Context, incidentID string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ReceiptByIncidentID"); err != nil {
		return domain.Receipt{}, err
	}
	d, ok := m.srs[incidentID]
	if !ok {
		return domain.Receipt{}, ErrNotFound
	}
	r, ok := m.receipts[d.IncidentNumber]
	if !ok {
		return domain.Receipt{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ReceiptAvailable(ctx context.Context, srNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ReceiptAvailable"); err != nil {
		return false, err
	}
	_, ok := m.receipts[srNumber]
	return ok, nil
}

func (m *Memory) Degrees(ctx context.Context) ([]domain.LookupOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "Degrees"); err != nil {
		return nil, err
	}
	return []domain.LookupOption{
		{Code: "1", NameEng: "Excellent", NameArb: "ممتازة"},
		{Code: "2", NameEng: "First", NameArb: "أولى"},
		{Code: "3", NameEng: "Second", NameArb: "ثانية"},
		{Code: "4", NameEng: "Third", NameArb: "ثالثة"},
		{Code: "5", NameEng: "Fourth", NameArb: "رابعة"},
	}, nil
}

func (m *Memory) Years(ctx context.Context) ([]domain.LookupOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "Years"); err != nil {
		return nil, err
	}
	return []domain.LookupOption{
		{Code: "1", NameEng: "1 Year", NameArb: "سنة واحدة"},
		{Code: "2", NameEng: "2 Years", NameArb: "سنتان"},
	}, nil
}
