// Package gateway is the boundary to the company registration backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sr-wizard/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrOCCINull is the backend's signal that the OCCI lookup returned no
	// company for the CR number.
	ErrOCCINull  = errors.New("occi returned null")
	ErrMalformed = errors.New("malformed response")
)

const (
	StatusSuccess       = "SUCCESS"
	StatusAlreadyExists = "ALREADY_EXISTS"
)

// HTTPError is a transport-level or non-2xx failure.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
}

func (e *HTTPError) Unwrap() error { return e.Err }

type CompanyQuery struct {
	CRNumber   string
	OCCINumber string
	Expiry     time.Time
}

// Registration is the create-or-fetch SR payload.
type Registration struct {
	CRNumber              string `json:"crNumber"`
	OCCINumber            string `json:"occiNumber"`
	OCCIExpiry            string `json:"occiExpiry"`
	CompanyName           string `json:"companyName"`
	Degree                string `json:"degree"`
	IsSME                 bool   `json:"isSme"`
	SMEType               string `json:"smeType"`
	IsRiyadaRegistered    bool   `json:"isRiyadaRegistered"`
	RiyadaExpiry          string `json:"riyadaExpiry,omitempty"`
	YearsToRenew          int    `json:"yearsToRenew"`
	Fees                  string `json:"fees"`
	RentContractNumber    string `json:"rentContractNumber"`
	LicenseNumber         string `json:"licenseNumber"`
	TaxRegistrationNumber string `json:"taxRegistrationNumber"`
	BeneficiaryNumber     string `json:"beneficiaryNumber"`
	POBox                 string `json:"poBox"`
	PostalCode            string `json:"postalCode"`
	Phone                 string `json:"phone"`
	Fax                   string `json:"fax"`
	Mobile                string `json:"mobile"`
	Email                 string `json:"email"`
	BankCode              string `json:"bankCode"`
	BankName              string `json:"bankName"`
	AccountNumber         string `json:"accountNumber"`
	Language              string `json:"language"`
}

type Gateway interface {
	ValidateCompany(ctx context.Context, q CompanyQuery) (domain.CompanyMatch, error)
	CompanyByCR(ctx context.Context, crNumber string) (domain.CompanyRecord, error)
	CheckExistingSR(ctx context.Context, crNumber string) (domain.ExistingSR, error)
	BankList(ctx context.Context) ([]domain.Bank, error)
	CreateOrFetchSR(ctx context.Context, reg Registration) (domain.SRDetails, error)
	SRDetailsByCR(ctx context.Context, crNumber string) (domain.SRDetails, error)
	SRDetailsByIncidentID(ctx context.Context, incidentID string) (domain.SRDetails, error)
	ReceiptBySRNumber(ctx context.Context, srNumber string) (domain.Receipt, error)
	ReceiptByIncidentID(ctx context.Context, incidentID string) (domain.Receipt, error)
	ReceiptAvailable(ctx context.Context, srNumber string) (bool, error)
	Degrees(ctx context.Context) ([]domain.LookupOption, error)
	Years(ctx context.Context) ([]domain.LookupOption, error)
}

// RecognizedStatus reports whether a create-or-fetch status code is one of
// the success sentinels.
func RecognizedStatus(code string) bool {
	code = strings.TrimSpace(code)
	return strings.EqualFold(code, StatusSuccess) || strings.EqualFold(code, StatusAlreadyExists)
}

// IsTransport reports whether err is a retryable transport/server failure
// rather than a lookup outcome.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOCCINull) {
		return false
	}
	return true
}
