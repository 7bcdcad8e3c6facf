package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/validate"
)

// Ticket identifies one auto-fill fetch.
type Ticket struct {
	seq      uint64
	CRNumber string
	ctx      context.Context
}

type AutoFillResult struct {
	Ticket Ticket
	Record domain.CompanyRecord
	Err    error
}

// AutoFill fetches the company record for a CR number. Only the most recent
// fetch may mutate the session; starting a new one cancels the previous.
type AutoFill struct {
	gw  gateway.Gateway
	log *zap.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewAutoFill(gw gateway.Gateway, log *zap.Logger) *AutoFill {
	if log == nil {
		log = zap.NewNop()
	}
	return &AutoFill{gw: gw, log: log.Named("autofill")}
}

// Begin supersedes any in-flight fetch. An empty CR number only cancels.
func (a *AutoFill) Begin(parent context.Context, crNumber string) (Ticket, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.seq++
	crNumber = strings.TrimSpace(crNumber)
	if crNumber == "" {
		return Ticket{}, false
	}
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	return Ticket{seq: a.seq, CRNumber: crNumber, ctx: ctx}, true
}

// Fetch blocks on the gateway. It is safe to call off the UI goroutine.
func (a *AutoFill) Fetch(t Ticket) AutoFillResult {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	rec, err := a.gw.CompanyByCR(ctx, t.CRNumber)
	return AutoFillResult{Ticket: t, Record: rec, Err: err}
}

func (a *AutoFill) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.seq++
}

// finish reports whether t is still the current fetch and releases it.
func (a *AutoFill) finish(t Ticket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.seq != a.seq {
		return false
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return true
}

// Apply merges a fetch result into the session. The bool is false when the
// result was stale and nothing happened.
func (a *AutoFill) Apply(s *Session, r AutoFillResult) (Notice, bool) {
	if s.Form().CRNumber != r.Ticket.CRNumber || !a.finish(r.Ticket) {
		a.log.Debug("dropping stale auto-fill result", zap.String("cr", r.Ticket.CRNumber))
		return Notice{}, false
	}
	switch {
	case errors.Is(r.Err, gateway.ErrNotFound):
		return warning(NoticeNoRecord, ""), true
	case r.Err != nil:
		a.log.Warn("auto-fill lookup failed", zap.String("cr", r.Ticket.CRNumber), zap.Error(r.Err))
		return warning(NoticeAPIError, r.Err.Error()), true
	}
	filled := s.mergeRecord(r.Record)
	a.log.Debug("auto-filled company record", zap.String("cr", r.Ticket.CRNumber), zap.Int("fields", len(filled)))
	n := info(NoticeAutofilled, "")
	n.Fields = filled
	return n, true
}

// mergeRecord fills blank, untouched fields from rec and returns the fields
// it wrote. Record fees are ignored; fees always follow yearsToRenew.
func (s *Session) mergeRecord(rec domain.CompanyRecord) []domain.Field {
	var filled []domain.Field
	fillable := func(f domain.Field, current string) bool {
		return !s.touched[f] && strings.TrimSpace(current) == ""
	}
	for _, fv := range rec.TextFields() {
		v := strings.TrimSpace(validate.Sanitize(fv.Field, fv.Value))
		if v == "" || !fillable(fv.Field, s.form.Text(fv.Field)) {
			continue
		}
		s.form.SetText(fv.Field, v)
		delete(s.fieldErrs, fv.Field)
		filled = append(filled, fv.Field)
	}

	if code := strings.TrimSpace(rec.BankCode); code != "" && fillable(domain.FieldBankCode, s.form.BankCode) {
		if !s.banks.Contains(code) {
			code, _ = s.banks.CodeByName(code)
		}
		if code != "" {
			s.form.BankCode = code
			delete(s.fieldErrs, domain.FieldBankCode)
			filled = append(filled, domain.FieldBankCode)
		}
	}

	years := domain.YearsToRenew(rec.YearsToRenew)
	if years.Valid() && s.form.YearsToRenew == domain.YearsUnset && !s.touched[domain.FieldYearsToRenew] {
		s.form.YearsToRenew = years
		filled = append(filled, domain.FieldYearsToRenew)
	}
	s.form.Rederive(s.UnitRate)
	return filled
}
