package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
)

// ErrMissingIncidentID means the backend accepted the request but returned
// no incident id to track it by.
var ErrMissingIncidentID = errors.New("response has no incident id")

// StatusError is a create-or-fetch response with a status other than the
// success sentinels.
type StatusError struct {
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service request rejected with status %q", e.Code)
	}
	return fmt.Sprintf("service request rejected with status %q: %s", e.Code, e.Message)
}

// Phase is a submission stage shown on the progress bar.
type Phase int

const (
	PhaseValidating Phase = iota
	PhaseCheckingRecords
	PhaseFinalizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseCheckingRecords:
		return "checking records"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

func (p Phase) Percent() float64 {
	switch p {
	case PhaseValidating:
		return 0.10
	case PhaseCheckingRecords:
		return 0.40
	case PhaseFinalizing:
		return 0.80
	case PhaseDone:
		return 1
	default:
		return 0
	}
}

type Progress struct {
	Phase   Phase
	Percent float64
}

type SubmitOutcome struct {
	Details domain.SRDetails
	Err     error
}

// Submitter runs create-or-fetch and reports progress per phase.
type Submitter struct {
	gw  gateway.Gateway
	log *zap.Logger
}

func NewSubmitter(gw gateway.Gateway, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{gw: gw, log: log.Named("submit")}
}

// Submit sends the payload and checks the response. report, when set, sees
// each phase once in order.
func (s *Submitter) Submit(ctx context.Context, reg gateway.Registration, report func(Progress)) SubmitOutcome {
	emit := func(p Phase) {
		if report != nil {
			report(Progress{Phase: p, Percent: p.Percent()})
		}
	}

	emit(PhaseValidating)
	if err := ctx.Err(); err != nil {
		return SubmitOutcome{Err: err}
	}

	emit(PhaseCheckingRecords)
	d, err := s.gw.CreateOrFetchSR(ctx, reg)
	if err != nil {
		s.log.Warn("create service request failed", zap.String("cr", reg.CRNumber), zap.Error(err))
		return SubmitOutcome{Err: fmt.Errorf("create service request: %w", err)}
	}

	emit(PhaseFinalizing)
	if strings.TrimSpace(d.IncidentID) == "" {
		s.log.Warn("create service request returned no incident id", zap.String("cr", reg.CRNumber))
		return SubmitOutcome{Err: ErrMissingIncidentID}
	}
	if !gateway.RecognizedStatus(d.StatusCode) {
		return SubmitOutcome{Err: &StatusError{Code: d.StatusCode, Message: d.Message}}
	}
	if strings.EqualFold(strings.TrimSpace(d.StatusCode), gateway.StatusAlreadyExists) {
		d.ExistingSR = true
	}
	if d.CRNumber == "" {
		d.CRNumber = reg.CRNumber
	}

	emit(PhaseDone)
	s.log.Info("service request ready",
		zap.String("incident_id", d.IncidentID),
		zap.String("incident_number", d.IncidentNumber),
		zap.Bool("existing", d.ExistingSR),
		zap.Bool("payment_required", d.PaymentRequired))
	return SubmitOutcome{Details: d}
}

// FetchDetails loads full SR details by incident id, falling back to the CR
// number when the id is unknown or missing.
func FetchDetails(ctx context.Context, gw gateway.Gateway, req DetailsRequest) (domain.SRDetails, error) {
	if req.IncidentID != "" {
		d, err := gw.SRDetailsByIncidentID(ctx, req.IncidentID)
		if err == nil {
			return d, nil
		}
		if req.CRNumber == "" || !errors.Is(err, gateway.ErrNotFound) {
			return domain.SRDetails{}, err
		}
	}
	if req.CRNumber == "" {
		return domain.SRDetails{}, gateway.ErrNotFound
	}
	return gw.SRDetailsByCR(ctx, req.CRNumber)
}
