package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/wizard"
)

var errReceiptMissing = errors.New("receipt not found; payment may not be completed")

type SRShowOptions struct {
	CRNumber   string
	IncidentID string
	JSON       bool
}

type ReceiptOptions struct {
	SRNumber   string
	IncidentID string
	JSON       bool
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (a *App) RunBanks(jsonOut bool) (int, error) {
	s, gw, err := a.connect()
	if err != nil {
		return 2, err
	}
	ctx, cancel := a.commandContext(s)
	defer cancel()

	dir := wizard.NewBankLoader(gw, a.logger()).Load(ctx)
	if dir.Source() == domain.BankSourceFallback {
		a.logger().Warn("bank list unavailable, showing the built-in directory")
	}
	if jsonOut {
		return 0, a.writeJSON(struct {
			Source domain.BankSource `json:"source"`
			Banks  []domain.Bank     `json:"banks"`
		}{dir.Source(), dir.Banks()})
	}
	for _, b := range dir.Banks() {
		fmt.Fprintf(a.Stdout, "%-4s %s\n", b.Code, b.Name(s.Language))
	}
	a.logger().Info("banks listed", zap.Int("count", dir.Len()), zap.String("source", string(dir.Source())))
	return 0, nil
}

// srView is the details record plus what the command derives from it.
type srView struct {
	domain.SRDetails
	Paid             bool   `json:"paid"`
	ReportURL        string `json:"reportUrl,omitempty"`
	ReceiptAvailable bool   `json:"receiptAvailable"`
}

func (a *App) RunSRShow(opts SRShowOptions) (int, error) {
	cr := strings.TrimSpace(opts.CRNumber)
	id := strings.TrimSpace(opts.IncidentID)
	if (cr == "") == (id == "") {
		return 2, errors.New("exactly one of --cr or --incident is required")
	}
	s, gw, err := a.connect()
	if err != nil {
		return 2, err
	}
	ctx, cancel := a.commandContext(s)
	defer cancel()

	d, err := wizard.FetchDetails(ctx, gw, wizard.DetailsRequest{IncidentID: id, CRNumber: cr})
	if errors.Is(err, gateway.ErrNotFound) {
		return 1, errors.New("service request not found")
	}
	if err != nil {
		return 1, err
	}

	view := srView{SRDetails: d, Paid: d.Paid(), ReportURL: d.ReportURL(s.Config.Report.BaseURL)}
	if err := a.enrichSRView(ctx, gw, &view, s.Config.Report.BaseURL); err != nil {
		a.logger().Debug("receipt availability unknown", zap.Error(err))
	}

	if opts.JSON {
		return 0, a.writeJSON(view)
	}
	c := newCatalog(s.Language)
	fmt.Fprintf(a.Stdout, "incident:  %s (%s)\n", d.IncidentNumber, d.IncidentID)
	if d.CRNumber != "" {
		fmt.Fprintf(a.Stdout, "cr:        %s\n", d.CRNumber)
	}
	if d.CompanyName != "" {
		fmt.Fprintf(a.Stdout, "company:   %s\n", d.CompanyName)
	}
	fmt.Fprintf(a.Stdout, "status:    %s\n", d.StatusText())
	fmt.Fprintf(a.Stdout, "payment:   %s\n", c.paymentStatus(d))
	if d.Fees != "" {
		fmt.Fprintf(a.Stdout, "fees:      %s OMR\n", d.Fees)
	}
	fmt.Fprintf(a.Stdout, "receipt:   %s\n", c.yesNo(view.ReceiptAvailable))
	if view.ReportURL != "" {
		fmt.Fprintf(a.Stdout, "report:    %s\n", view.ReportURL)
	}
	return 0, nil
}

// enrichSRView fills in the company id from the by-CR record when the
// by-id record lacks it, and checks for a receipt. Both run in parallel.
// Only the receipt check reports an error.
func (a *App) enrichSRView(ctx context.Context, gw gateway.Gateway, view *srView, reportBase string) error {
	g, gctx := errgroup.WithContext(ctx)
	var latest domain.SRDetails
	if view.CRNumber != "" && view.CompanyID == "" {
		g.Go(func() error {
			d, err := gw.SRDetailsByCR(gctx, view.CRNumber)
			if err != nil {
				return nil
			}
			latest = d
			return nil
		})
	}
	var available bool
	if view.IncidentNumber != "" {
		g.Go(func() error {
			ok, err := gw.ReceiptAvailable(gctx, view.IncidentNumber)
			if err != nil {
				return fmt.Errorf("receipt availability: %w", err)
			}
			available = ok
			return nil
		})
	}
	err := g.Wait()
	if latest.IncidentID == view.IncidentID && latest.CompanyID != "" {
		view.CompanyID = latest.CompanyID
		view.ReportURL = latest.ReportURL(reportBase)
	}
	view.ReceiptAvailable = available
	return err
}

func (a *App) RunSRExists(crNumber string) (int, error) {
	cr := strings.TrimSpace(crNumber)
	if cr == "" {
		return 2, errors.New("--cr is required")
	}
	s, gw, err := a.connect()
	if err != nil {
		return 2, err
	}
	ctx, cancel := a.commandContext(s)
	defer cancel()

	ex, err := gw.CheckExistingSR(ctx, cr)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return 1, err
	}
	if !ex.HasActiveSR {
		fmt.Fprintf(a.Stdout, "no active service request for CR %s\n", cr)
		return 1, nil
	}
	fmt.Fprintf(a.Stdout, "active service request %s (incident %s)\n", ex.IncidentNumber, ex.IncidentID)
	return 0, nil
}

func (a *App) RunReceipt(opts ReceiptOptions) (int, error) {
	sr := strings.TrimSpace(opts.SRNumber)
	id := strings.TrimSpace(opts.IncidentID)
	if (sr == "") == (id == "") {
		return 2, errors.New("exactly one of --sr or --incident is required")
	}
	s, gw, err := a.connect()
	if err != nil {
		return 2, err
	}
	ctx, cancel := a.commandContext(s)
	defer cancel()

	var r domain.Receipt
	if sr != "" {
		r, err = gw.ReceiptBySRNumber(ctx, sr)
	} else {
		r, err = gw.ReceiptByIncidentID(ctx, id)
	}
	if errors.Is(err, gateway.ErrNotFound) {
		return 1, errReceiptMissing
	}
	if err != nil {
		return 1, err
	}

	if opts.JSON {
		return 0, a.writeJSON(r)
	}
	fmt.Fprintf(a.Stdout, "receipt:   %s\n", r.ReceiptNumber)
	fmt.Fprintf(a.Stdout, "incident:  %s\n", r.IncidentNumber)
	if r.ReceiptDate != "" {
		fmt.Fprintf(a.Stdout, "date:      %s\n", r.ReceiptDate)
	}
	if r.AmountPaid != "" {
		fmt.Fprintf(a.Stdout, "amount:    %s OMR\n", r.AmountPaid)
	}
	if name := s.Language.Pick(r.CompanyName, r.CustomerName); name != "" {
		fmt.Fprintf(a.Stdout, "company:   %s\n", name)
	}
	return 0, nil
}

// RunLookup prints one of the backend code tables: "degrees" or "years".
func (a *App) RunLookup(kind string, jsonOut bool) (int, error) {
	var fetch func(gateway.Gateway, context.Context) ([]domain.LookupOption, error)
	switch kind {
	case "degrees":
		fetch = gateway.Gateway.Degrees
	case "years":
		fetch = gateway.Gateway.Years
	default:
		return 2, fmt.Errorf("unknown lookup %q (want degrees or years)", kind)
	}
	s, gw, err := a.connect()
	if err != nil {
		return 2, err
	}
	ctx, cancel := a.commandContext(s)
	defer cancel()

	opts, err := fetch(gw, ctx)
	if err != nil {
		return 1, fmt.Errorf("%s lookup: %w", kind, err)
	}
	if jsonOut {
		if opts == nil {
			opts = []domain.LookupOption{}
		}
		return 0, a.writeJSON(opts)
	}
	for _, o := range opts {
		name := o.NameEng
		if s.Language == domain.LanguageArabic && o.NameArb != "" {
			name = o.NameArb
		}
		fmt.Fprintf(a.Stdout, "%-4s %s\n", o.Code, name)
	}
	return 0, nil
}
