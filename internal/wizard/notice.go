package wizard

import (
	"time"

	"sr-wizard/internal/domain"
)

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeError
	NoticeSuccess
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	case NoticeSuccess:
		return "success"
	default:
		return "info"
	}
}

type NoticeCode string

const (
	NoticeFillRequired     NoticeCode = "fill_required"
	NoticeValidateFirst    NoticeCode = "validate_first"
	NoticeCompanyMismatch  NoticeCode = "company_mismatch"
	NoticeInvalidCR        NoticeCode = "invalid_cr"
	NoticeAPIError         NoticeCode = "api_error"
	NoticeExistingSR       NoticeCode = "existing_sr"
	NoticeCompanyValidated NoticeCode = "company_validated"
	NoticeAutofilled       NoticeCode = "autofilled"
	NoticeNoRecord         NoticeCode = "no_record"
	NoticeDetailsFailed    NoticeCode = "details_failed"
	NoticeCaptchaMismatch  NoticeCode = "captcha_mismatch"
	NoticeCaptchaRequired  NoticeCode = "captcha_required"
	NoticeSubmitFailed     NoticeCode = "submit_failed"
	NoticeSRCreated        NoticeCode = "sr_created"
	NoticeSRExisting       NoticeCode = "sr_existing"
	NoticeReceiptMissing   NoticeCode = "receipt_missing"
)

const (
	DefaultNoticeDelay = 3 * time.Second
	DetailsNoticeDelay = 5 * time.Second
)

// Notice is a transient user-facing message. The zero value means "no
// notice". Text is resolved by the renderer from Code.
type Notice struct {
	Kind   NoticeKind
	Code   NoticeCode
	Detail string
	Fields []domain.Field
	// AutoDismiss is zero for notices that stay until replaced.
	AutoDismiss time.Duration
}

func (n Notice) Empty() bool { return n.Code == "" }

func info(code NoticeCode, detail string) Notice {
	return Notice{Kind: NoticeInfo, Code: code, Detail: detail, AutoDismiss: DefaultNoticeDelay}
}

func warning(code NoticeCode, detail string) Notice {
	return Notice{Kind: NoticeWarning, Code: code, Detail: detail, AutoDismiss: DefaultNoticeDelay}
}

func failure(code NoticeCode, detail string, fields ...domain.Field) Notice {
	return Notice{Kind: NoticeError, Code: code, Detail: detail, Fields: fields}
}
