package app

import (
	"fmt"
	"strings"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/validate"
	"sr-wizard/internal/wizard"
)

// catalog resolves user-facing text in the session language. Missing
// Arabic entries fall back to English.
type catalog struct {
	lang domain.Language
}

func newCatalog(lang domain.Language) catalog {
	return catalog{lang: lang}
}

type entry struct {
	en string
	ar string
}

func (c catalog) pick(e entry) string {
	return c.lang.Pick(e.en, e.ar)
}

var fieldLabels = map[domain.Field]entry{
	domain.FieldCRNumber:              {"CR Number", "رقم السجل التجاري"},
	domain.FieldOCCINumber:            {"OCCI Number", "رقم عضوية الغرفة"},
	domain.FieldOCCIExpiry:            {"OCCI Expiry Date", "تاريخ انتهاء عضوية الغرفة"},
	domain.FieldCompanyName:           {"Company Name", "اسم الشركة"},
	domain.FieldDegree:                {"Degree", "الدرجة"},
	domain.FieldIsSME:                 {"SME Registered", "مسجلة كمؤسسة صغيرة ومتوسطة"},
	domain.FieldSMEType:               {"SME Type", "نوع المؤسسة"},
	domain.FieldIsRiyadaRegistered:    {"Riyada Card", "بطاقة ريادة"},
	domain.FieldRiyadaExpiry:          {"Riyada Expiry Date", "تاريخ انتهاء بطاقة ريادة"},
	domain.FieldYearsToRenew:          {"Years to Renew", "سنوات التجديد"},
	domain.FieldFees:                  {"Fees (OMR)", "الرسوم (ر.ع)"},
	domain.FieldRentContractNumber:    {"Rent Contract Number", "رقم عقد الإيجار"},
	domain.FieldLicenseNumber:         {"License Number", "رقم الترخيص"},
	domain.FieldTaxRegistrationNumber: {"Tax Registration Number", "الرقم الضريبي"},
	domain.FieldBeneficiaryNumber:     {"Beneficiary Number", "رقم المستفيد"},
	domain.FieldPOBox:                 {"P.O. Box", "صندوق البريد"},
	domain.FieldPostalCode:            {"Postal Code", "الرمز البريدي"},
	domain.FieldPhone:                 {"Phone", "الهاتف"},
	domain.FieldFax:                   {"Fax", "الفاكس"},
	domain.FieldMobile:                {"Mobile", "الهاتف النقال"},
	domain.FieldEmail:                 {"Email", "البريد الإلكتروني"},
	domain.FieldBankCode:              {"Bank", "البنك"},
	domain.FieldAccountNumber:         {"Account Number", "رقم الحساب"},
}

func (c catalog) field(f domain.Field) string {
	if e, ok := fieldLabels[f]; ok {
		return c.pick(e)
	}
	return string(f)
}

var stepLabels = map[domain.Step]entry{
	domain.StepCompany:   {"Company", "الشركة"},
	domain.StepContract:  {"Contract", "العقد"},
	domain.StepPayment:   {"Payment", "الدفع"},
	domain.StepSummary:   {"Summary", "الملخص"},
	domain.StepSRDetails: {"SR Details", "تفاصيل الطلب"},
}

func (c catalog) step(s domain.Step) string {
	if e, ok := stepLabels[s]; ok {
		return c.pick(e)
	}
	return s.Label()
}

var codeText = map[validate.Code]entry{
	validate.Required:      {"This field is required", "هذا الحقل مطلوب"},
	validate.Length:        {"Wrong number of digits", "عدد الأرقام غير صحيح"},
	validate.Email:         {"Enter a valid email address", "أدخل بريدًا إلكترونيًا صحيحًا"},
	validate.Date:          {"Use the format YYYY-MM-DD", "استخدم الصيغة YYYY-MM-DD"},
	validate.UnknownBank:   {"Unknown bank code", "رمز بنك غير معروف"},
	validate.InvalidChoice: {"Choose 1 or 2", "اختر 1 أو 2"},
	validate.Mismatch:      {"Does not match the registry", "لا يطابق السجل"},
	validate.InvalidCR:     {"Invalid CR number", "رقم السجل التجاري غير صحيح"},
}

func (c catalog) code(code validate.Code) string {
	if code == validate.OK {
		return ""
	}
	if e, ok := codeText[code]; ok {
		return c.pick(e)
	}
	return string(code)
}

var actionLabels = map[wizard.Action]entry{
	wizard.ActionValidate:       {"Validate", "تحقق"},
	wizard.ActionNext:           {"Next", "التالي"},
	wizard.ActionViewExistingSR: {"View Existing SR", "عرض الطلب الحالي"},
	wizard.ActionSubmit:         {"Submit", "إرسال"},
	wizard.ActionHome:           {"Home", "الرئيسية"},
}

func (c catalog) action(a wizard.Action) string {
	if e, ok := actionLabels[a]; ok {
		return c.pick(e)
	}
	return a.String()
}

var noticeText = map[wizard.NoticeCode]entry{
	wizard.NoticeFillRequired:     {"Please fill all required fields", "يرجى تعبئة جميع الحقول المطلوبة"},
	wizard.NoticeValidateFirst:    {"Validate the company before continuing", "يرجى التحقق من الشركة قبل المتابعة"},
	wizard.NoticeCompanyMismatch:  {"Company details do not match", "بيانات الشركة غير متطابقة"},
	wizard.NoticeInvalidCR:        {"Invalid CR number", "رقم السجل التجاري غير صحيح"},
	wizard.NoticeAPIError:         {"The service is unavailable, please try again", "الخدمة غير متاحة، يرجى المحاولة مرة أخرى"},
	wizard.NoticeExistingSR:       {"An active service request already exists", "يوجد طلب خدمة قائم"},
	wizard.NoticeCompanyValidated: {"Company validated", "تم التحقق من الشركة"},
	wizard.NoticeAutofilled:       {"Saved company details were filled in", "تمت تعبئة بيانات الشركة المحفوظة"},
	wizard.NoticeNoRecord:         {"No saved details for this CR number", "لا توجد بيانات محفوظة لهذا السجل"},
	wizard.NoticeDetailsFailed:    {"Could not load the service request", "تعذر تحميل طلب الخدمة"},
	wizard.NoticeCaptchaMismatch:  {"The code did not match, try the new one", "الرمز غير مطابق، جرّب الرمز الجديد"},
	wizard.NoticeCaptchaRequired:  {"Verify the code before submitting", "تحقق من الرمز قبل الإرسال"},
	wizard.NoticeSubmitFailed:     {"Submission failed", "فشل الإرسال"},
	wizard.NoticeSRCreated:        {"Service request created", "تم إنشاء طلب الخدمة"},
	wizard.NoticeSRExisting:       {"Service request already registered", "طلب الخدمة مسجل مسبقًا"},
	wizard.NoticeReceiptMissing:   {"Receipt not found; payment may not be completed", "لم يتم العثور على الإيصال؛ ربما لم يكتمل الدفع"},
}

// notice renders the message line. Mismatch notices list the fields that
// failed, joined with " | ".
func (c catalog) notice(n wizard.Notice) string {
	if n.Empty() {
		return ""
	}
	msg := string(n.Code)
	if e, ok := noticeText[n.Code]; ok {
		msg = c.pick(e)
	}
	if n.Code == wizard.NoticeCompanyMismatch && len(n.Fields) > 0 {
		labels := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			labels[i] = c.field(f)
		}
		msg += ": " + strings.Join(labels, " | ")
	}
	if d := strings.TrimSpace(n.Detail); d != "" {
		msg = fmt.Sprintf("%s (%s)", msg, d)
	}
	return msg
}

func (c catalog) yesNo(v bool) string {
	if v {
		return c.pick(entry{"Yes", "نعم"})
	}
	return c.pick(entry{"No", "لا"})
}

func (c catalog) paymentStatus(d domain.SRDetails) string {
	switch {
	case d.Paid():
		return c.pick(entry{"Paid", "مدفوع"})
	case d.NeedsPayment():
		return c.pick(entry{"Payment pending", "بانتظار الدفع"})
	default:
		return c.pick(entry{"No payment required", "لا يتطلب الدفع"})
	}
}

func (c catalog) phase(p wizard.Phase) string {
	switch p {
	case wizard.PhaseValidating:
		return c.pick(entry{"Validating", "جارٍ التحقق"})
	case wizard.PhaseCheckingRecords:
		return c.pick(entry{"Checking records", "جارٍ فحص السجلات"})
	case wizard.PhaseFinalizing:
		return c.pick(entry{"Finalizing", "جارٍ الإنهاء"})
	case wizard.PhaseDone:
		return c.pick(entry{"Done", "تم"})
	default:
		return p.String()
	}
}
