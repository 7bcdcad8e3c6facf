package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sr-wizard/internal/captcha"
	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/wizard"
)

type RegisterWizardInput struct {
	Context       context.Context
	Session       *wizard.Session
	Gateway       gateway.Gateway
	Logger        *zap.Logger
	Captcha       *captcha.Challenge
	NoticeDelay   time.Duration
	ReportBaseURL string
	BaseURL       string
	Offline       bool
}

// Submission is one service request the wizard created or fetched.
type Submission struct {
	Details domain.SRDetails
	Form    domain.FormData
}

type RegisterWizardResult struct {
	Submissions []Submission
}

type RegisterWizardRunner func(RegisterWizardInput) (RegisterWizardResult, error)

func (a *App) RunRegister() (int, error) {
	if a.IsInteractiveTerminal == nil || !a.IsInteractiveTerminal() {
		return 2, errors.New("srw register requires an interactive terminal")
	}
	if a.RunRegisterWizard == nil {
		return 2, errors.New("register wizard is not configured")
	}
	s, err := a.loadSettings()
	if err != nil {
		return 2, err
	}

	log, closeLog, err := a.fileLogger()
	if err != nil {
		return 1, err
	}
	defer closeLog()

	sessionID := uuid.NewString()
	log = log.With(zap.String("session", sessionID))
	gw, err := a.OpenGateway(s, sessionID, log)
	if err != nil {
		return 2, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := wizard.NewSession(wizard.Options{
		ID:       sessionID,
		UnitRate: s.UnitRate,
		Language: s.Language,
	})
	log.Info("register wizard started",
		zap.String("api", s.BaseURL),
		zap.Bool("offline", s.Offline),
		zap.String("lang", string(s.Language)))

	result, err := a.RunRegisterWizard(RegisterWizardInput{
		Context:       ctx,
		Session:       session,
		Gateway:       gw,
		Logger:        log,
		NoticeDelay:   s.NoticeDelay,
		ReportBaseURL: s.Config.Report.BaseURL,
		BaseURL:       s.BaseURL,
		Offline:       s.Offline,
	})
	if err != nil {
		return 1, err
	}

	code := 0
	for _, sub := range result.Submissions {
		if err := a.recordSubmission(s, sessionID, sub.Details, sub.Form); err != nil {
			log.Warn("history not saved", zap.Error(err))
			fmt.Fprintf(a.Stderr, "srw: %v\n", err)
			code = 1
		}
		verb := "created"
		if sub.Details.Existing() {
			verb = "already registered"
		}
		fmt.Fprintf(a.Stdout, "service request %s %s (%s)\n",
			sub.Details.IncidentNumber, verb, newCatalog(s.Language).paymentStatus(sub.Details))
		if url := sub.Details.ReportURL(s.Config.Report.BaseURL); url != "" {
			fmt.Fprintf(a.Stdout, "report: %s\n", url)
		}
	}
	log.Info("register wizard finished", zap.Int("submissions", len(result.Submissions)))
	return code, nil
}
