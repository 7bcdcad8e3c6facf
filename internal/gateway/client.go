package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sr-wizard/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:8087"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Language   domain.Language
	SessionID  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the registration backend over HTTP+JSON.
type Client struct {
	base      *url.URL
	http      *http.Client
	lang      domain.Language
	sessionID string
	log       *zap.Logger
}

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q must be http or https", raw)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	lang := cfg.Language
	if lang == "" {
		lang = domain.LanguageEnglish
	}
	return &Client{base: base, http: hc, lang: lang, sessionID: cfg.SessionID, log: log.Named("gateway")}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

// do sends a request and returns the raw body of a 2xx response. 404 maps
// to ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, &HTTPError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", string(c.lang))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &HTTPError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		return nil, &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	return b, nil
}

func errorMessage(body []byte) string {
	var envelope struct {
		Message string      `json:"message"`
		Error   string      `json:"error"`
		Status  *statusBody `json:"status"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Status != nil && envelope.Status.Message != "":
			return envelope.Status.Message
		case envelope.Error != "":
			return envelope.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func decode(body []byte, out any, what string) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w: %v", what, ErrMalformed, err)
	}
	return nil
}

func (c *Client) ValidateCompany(ctx context.Context, q CompanyQuery) (domain.CompanyMatch, error) {
	path := c.endpoint("api", "company", "validate")
	body, err := c.do(ctx, http.MethodPost, path, validateRequest{
		CRNumber:   q.CRNumber,
		OCCINumber: q.OCCINumber,
		Expiry:     formatExpiry(q.Expiry),
	})
	if err != nil {
		return domain.CompanyMatch{}, err
	}
	var env envelope
	if err := decode(body, &env, "validate response"); err != nil {
		return domain.CompanyMatch{}, err
	}
	data := env.Data
	if !env.hasData() && isFlatValidate(body) {
		data = body
	} else if !env.hasData() {
		if env.Status != nil && strings.Contains(strings.ToLower(env.Status.Message), "occi returned null") {
			return domain.CompanyMatch{}, ErrOCCINull
		}
		msg := "empty validate response"
		if env.Status != nil && env.Status.Message != "" {
			msg = env.Status.Message
		}
		return domain.CompanyMatch{}, fmt.Errorf("%w: %s", ErrMalformed, msg)
	}
	var v validateData
	if err := decode(data, &v, "validate data"); err != nil {
		return domain.CompanyMatch{}, err
	}
	return v.match(), nil
}

func isFlatValidate(body []byte) bool {
	var keys map[string]json.RawMessage
	if json.Unmarshal(body, &keys) != nil {
		return false
	}
	_, ok := keys["cr_match"]
	return ok
}

func (c *Client) CompanyByCR(ctx context.Context, crNumber string) (domain.CompanyRecord, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "company", "by-cr", crNumber), nil)
	if err != nil {
		return domain.CompanyRecord{}, err
	}
	inner := unwrap(body)
	if t := bytes.TrimSpace(inner); len(t) == 0 || string(t) == "null" || string(t) == "{}" {
		return domain.CompanyRecord{}, ErrNotFound
	}
	var data companyRecordData
	if err := decode(inner, &data, "company record"); err != nil {
		return domain.CompanyRecord{}, err
	}
	return data.record(), nil
}

func (c *Client) CheckExistingSR(ctx context.Context, crNumber string) (domain.ExistingSR, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "company", "sr", "exists", crNumber), nil)
	if err != nil {
		return domain.ExistingSR{}, err
	}
	var data existingSRData
	if err := decode(unwrap(body), &data, "existing sr"); err != nil {
		return domain.ExistingSR{}, err
	}
	cr := data.CRNumber.String()
	if cr == "" {
		cr = crNumber
	}
	return domain.ExistingSR{
		CRNumber:       cr,
		HasActiveSR:    bool(data.HasActiveSR),
		IncidentID:     data.IncidentID.String(),
		IncidentNumber: data.IncidentNumber.String(),
	}, nil
}

func (c *Client) BankList(ctx context.Context) ([]domain.Bank, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "lookup", "banks"), nil)
	if err != nil {
		return nil, err
	}
	var rows []bankData
	if err := decode(unwrap(body), &rows, "bank list"); err != nil {
		return nil, err
	}
	out := make([]domain.Bank, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Bank)
	}
	return out, nil
}

func (c *Client) CreateOrFetchSR(ctx context.Context, reg Registration) (domain.SRDetails, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoint("api", "company", "register"), reg)
	if err != nil {
		return domain.SRDetails{}, err
	}
	d, err := decodeSRDetails(unwrap(body))
	if err != nil {
		return domain.SRDetails{}, err
	}
	// Some backend versions only report the outcome in the envelope status.
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Status != nil {
		if d.StatusCode == "" {
			d.StatusCode = env.Status.Code.String()
		}
		if d.Message == "" {
			d.Message = env.Status.Message
		}
	}
	return d, nil
}

func (c *Client) SRDetailsByCR(ctx context.Context, crNumber string) (domain.SRDetails, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "company", "sr", crNumber), nil)
	if err != nil {
		return domain.SRDetails{}, err
	}
	return decodeSRDetails(unwrap(body))
}

func (c *Client) SRDetailsByIncidentID(ctx context.Context, incidentID string) (domain.SRDetails, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "company", "sr", "id", incidentID), nil)
	if err != nil {
		return domain.SRDetails{}, err
	}
	return decodeSRDetails(unwrap(body))
}

func (c *Client) ReceiptBySRNumber(ctx context.Context, srNumber string) (domain.Receipt, error) {
	return c.receipt(ctx, c.endpoint("api", "receipt", "sr", srNumber))
}

func (c *Client) ReceiptByIncidentID(ctx context.Context, incidentID string) (domain.Receipt, error) {
	return c.receipt(ctx, c.endpoint("api", "receipt", "incident", incidentID))
}

func (c *Client) receipt(ctx context.Context, path string) (domain.Receipt, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Receipt{}, err
	}
	var data receiptData
	if err := decode(unwrap(body), &data, "receipt"); err != nil {
		return domain.Receipt{}, err
	}
	return data.receipt(), nil
}

func (c *Client) ReceiptAvailable(ctx context.Context, srNumber string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("api", "receipt", "sr", srNumber, "available"), nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var ok flexBool
	if err := decode(unwrap(body), &ok, "receipt availability"); err != nil {
		return false, err
	}
	return bool(ok), nil
}

func (c *Client) Degrees(ctx context.Context) ([]domain.LookupOption, error) {
	return c.options(ctx, c.endpoint("api", "lookup", "degrees"))
}

func (c *Client) Years(ctx context.Context) ([]domain.LookupOption, error) {
	return c.options(ctx, c.endpoint("api", "lookup", "years"))
}

func (c *Client) options(ctx context.Context, path string) ([]domain.LookupOption, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rows []optionData
	if err := decode(unwrap(body), &rows, "lookup options"); err != nil {
		return nil, err
	}
	out := make([]domain.LookupOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.LookupOption)
	}
	return out, nil
}
