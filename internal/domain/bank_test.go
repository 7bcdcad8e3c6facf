package domain

import "testing"

func TestFallbackBankDirectory(t *testing.T) {
	dir := FallbackBankDirectory()
	if got := dir.Len(); got != 31 {
		t.Fatalf("fallback entries = %d, want 31", got)
	}
	if dir.Source() != BankSourceFallback {
		t.Fatalf("source = %q, want fallback", dir.Source())
	}
	if got := dir.Name("78", LanguageEnglish); got != "Bank Muscat" {
		t.Fatalf("english name for 78 = %q", got)
	}
	if got := dir.Name("78", LanguageArabic); got != "بنك مسقط" {
		t.Fatalf("arabic name for 78 = %q", got)
	}
}

func TestBankDirectoryName(t *testing.T) {
	dir := NewBankDirectory([]Bank{
		{Code: "10", NameEng: "First", NameArb: "الأول"},
		{Code: "11", NameEng: "English Only"},
	}, BankSourceRemote)

	tests := []struct {
		name string
		code string
		lang Language
		want string
	}{
		{name: "empty code", code: "", lang: LanguageEnglish, want: "-"},
		{name: "unknown code echoes", code: "99", lang: LanguageEnglish, want: "99"},
		{name: "arabic", code: "10", lang: LanguageArabic, want: "الأول"},
		{name: "arabic falls back to english", code: "11", lang: LanguageArabic, want: "English Only"},
		{name: "trims code", code: " 10 ", lang: LanguageEnglish, want: "First"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dir.Name(tt.code, tt.lang); got != tt.want {
				t.Fatalf("Name(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestNewBankDirectoryKeepsFirstCode(t *testing.T) {
	dir := NewBankDirectory([]Bank{
		{Code: "2", NameEng: "B"},
		{Code: "", NameEng: "no code"},
		{Code: "1", NameEng: "A"},
		{Code: "2", NameEng: "duplicate"},
	}, BankSourceRemote)

	codes := dir.Codes()
	if len(codes) != 2 || codes[0] != "2" || codes[1] != "1" {
		t.Fatalf("codes = %v, want fetch order [2 1]", codes)
	}
	if got := dir.Name("2", LanguageEnglish); got != "B" {
		t.Fatalf("duplicate replaced first entry: %q", got)
	}
}

func TestBankDirectoryCodeByName(t *testing.T) {
	dir := FallbackBankDirectory()
	if code, ok := dir.CodeByName("bank muscat"); !ok || code != "78" {
		t.Fatalf("english lookup = %q %v", code, ok)
	}
	if code, ok := dir.CodeByName("بنك ظفار"); !ok || code != "62" {
		t.Fatalf("arabic lookup = %q %v", code, ok)
	}
	if _, ok := dir.CodeByName("Unknown Bank"); ok {
		t.Fatal("expected unknown name to miss")
	}
}

func TestNilBankDirectory(t *testing.T) {
	var dir *BankDirectory
	if dir.Contains("78") {
		t.Fatal("nil directory must not contain codes")
	}
	if got := dir.Name("78", LanguageEnglish); got != "78" {
		t.Fatalf("nil directory name = %q", got)
	}
}
