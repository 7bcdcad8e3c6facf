package wizard

import (
	"context"

	"go.uber.org/zap"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
)

type CompanyOutcome struct {
	Query    gateway.CompanyQuery
	Match    domain.CompanyMatch
	Existing domain.ExistingSR
	Err      error
}

// Checker runs validate-company and, when every check matches, the
// best-effort active-SR lookup.
type Checker struct {
	gw  gateway.Gateway
	log *zap.Logger
}

func NewChecker(gw gateway.Gateway, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{gw: gw, log: log.Named("company")}
}

func (c *Checker) Validate(ctx context.Context, q gateway.CompanyQuery) CompanyOutcome {
	out := CompanyOutcome{Query: q}
	m, err := c.gw.ValidateCompany(ctx, q)
	if err != nil {
		c.log.Info("validate company failed", zap.String("cr", q.CRNumber), zap.Error(err))
		out.Err = err
		return out
	}
	out.Match = m
	if !m.AllMatch() {
		c.log.Info("company checks did not match",
			zap.String("cr", q.CRNumber),
			zap.Bool("cr_match", m.CRMatch),
			zap.Bool("occi_number_match", m.OCCINumberMatch),
			zap.Bool("expiry_valid", m.ExpiryValid))
		return out
	}

	existing, err := c.gw.CheckExistingSR(ctx, q.CRNumber)
	if err != nil {
		// Treated as "no active SR".
		c.log.Debug("existing sr check failed", zap.String("cr", q.CRNumber), zap.Error(err))
		existing = domain.ExistingSR{CRNumber: q.CRNumber}
	}
	out.Existing = existing
	return out
}
