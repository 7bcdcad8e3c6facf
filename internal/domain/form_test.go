package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFees(t *testing.T) {
	rate := decimal.RequireFromString("50.000")
	tests := []struct {
		years YearsToRenew
		want  string
	}{
		{YearsUnset, "0.000"},
		{YearsOne, "50.000"},
		{YearsTwo, "100.000"},
		{YearsToRenew(3), "0.000"},
	}
	for _, tt := range tests {
		if got := FormatFees(Fees(tt.years, rate)); got != tt.want {
			t.Fatalf("Fees(%d) = %s, want %s", tt.years, got, tt.want)
		}
	}
}

func TestRederive(t *testing.T) {
	rate := decimal.NewFromInt(25)

	t.Run("sme type dash when not sme", func(t *testing.T) {
		f := EmptyForm()
		f.SMEType = "Micro"
		f.IsSME = false
		f.Rederive(rate)
		if f.SMEType != SMETypeNone {
			t.Fatalf("smeType = %q, want %q", f.SMEType, SMETypeNone)
		}
	})

	t.Run("sme type kept when sme", func(t *testing.T) {
		f := EmptyForm()
		f.IsSME = true
		f.SMEType = "Micro"
		f.Rederive(rate)
		if f.SMEType != "Micro" {
			t.Fatalf("smeType = %q", f.SMEType)
		}
	})

	t.Run("fees follow years", func(t *testing.T) {
		f := EmptyForm()
		f.YearsToRenew = YearsTwo
		f.Fees = decimal.NewFromInt(999)
		f.Rederive(rate)
		if !f.Fees.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("fees = %s, want 50", f.Fees)
		}
	})

	t.Run("riyada expiry cleared when not registered", func(t *testing.T) {
		f := EmptyForm()
		f.RiyadaExpiry = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
		f.Rederive(rate)
		if !f.RiyadaExpiry.IsZero() {
			t.Fatalf("riyada expiry = %v, want zero", f.RiyadaExpiry)
		}
	})
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2026-01-01", "01-01-2026", "2026-01-01T10:00:00Z"} {
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v", raw, got)
		}
	}
	if _, err := ParseDate("2026/13/40"); err == nil {
		t.Fatal("expected invalid date error")
	}
	if got, err := ParseDate("  "); err != nil || !got.IsZero() {
		t.Fatalf("blank date = %v %v", got, err)
	}
}

func TestParseYearsToRenew(t *testing.T) {
	if y, err := ParseYearsToRenew("2"); err != nil || y != YearsTwo {
		t.Fatalf("parse 2 = %v %v", y, err)
	}
	if _, err := ParseYearsToRenew("3"); err == nil {
		t.Fatal("expected out of range error")
	}
	if y, err := ParseYearsToRenew(""); err != nil || y != YearsUnset {
		t.Fatalf("blank = %v %v", y, err)
	}
}

func TestFormDataTextAccessors(t *testing.T) {
	f := EmptyForm()
	if !f.SetText(FieldMobile, "91234567") {
		t.Fatal("mobile should be a text field")
	}
	if f.SetText(FieldOCCIExpiry, "x") {
		t.Fatal("expiry is not a text field")
	}
	if got := f.Text(FieldMobile); got != "91234567" {
		t.Fatalf("mobile = %q", got)
	}
}

func TestCompanyMatchFailed(t *testing.T) {
	m := CompanyMatch{CRMatch: true, OCCINumberMatch: false, ExpiryValid: false}
	failed := m.Failed()
	if len(failed) != 2 || failed[0] != FieldOCCINumber || failed[1] != FieldOCCIExpiry {
		t.Fatalf("failed = %v", failed)
	}
	if m.AllMatch() {
		t.Fatal("expected mismatch")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := map[string]Language{
		"":            LanguageEnglish,
		"ar":          LanguageArabic,
		"ar-OM":       LanguageArabic,
		"ar_OM.UTF-8": LanguageArabic,
		"en_US.UTF-8": LanguageEnglish,
		"fr":          LanguageEnglish,
		"C":           LanguageEnglish,
	}
	for raw, want := range tests {
		if got := ParseLanguage(raw); got != want {
			t.Fatalf("ParseLanguage(%q) = %q, want %q", raw, got, want)
		}
	}
	if got := LanguageArabic.Pick("Acme", ""); got != "Acme" {
		t.Fatalf("pick falls back to english: %q", got)
	}
	if got := LanguageEnglish.Pick("", "أكمي"); got != "أكمي" {
		t.Fatalf("pick falls back to arabic: %q", got)
	}
}
