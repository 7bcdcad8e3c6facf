package domain

import "strings"

type Bank struct {
	Code    string `yaml:"bank_code" json:"bankCode"`
	NameEng string `yaml:"bank_name_eng" json:"bankNameEng"`
	NameArb string `yaml:"bank_name_arb" json:"bankNameArb"`
}

func (b Bank) Name(lang Language) string {
	return lang.Pick(b.NameEng, b.NameArb)
}

type BankSource string

const (
	BankSourceRemote   BankSource = "remote"
	BankSourceFallback BankSource = "fallback"
)

// BankDirectory is a read-only list of banks in fetch order, keyed by code.
type BankDirectory struct {
	banks  []Bank
	byCode map[string]int
	source BankSource
}

// NewBankDirectory keeps the first entry for each code and drops entries
// without one.
func NewBankDirectory(banks []Bank, source BankSource) *BankDirectory {
	d := &BankDirectory{
		banks:  make([]Bank, 0, len(banks)),
		byCode: make(map[string]int, len(banks)),
		source: source,
	}
	for _, b := range banks {
		b.Code = strings.TrimSpace(b.Code)
		if b.Code == "" {
			continue
		}
		if _, exists := d.byCode[b.Code]; exists {
			continue
		}
		d.byCode[b.Code] = len(d.banks)
		d.banks = append(d.banks, b)
	}
	return d
}

func FallbackBankDirectory() *BankDirectory {
	return NewBankDirectory(FallbackBanks(), BankSourceFallback)
}

func (d *BankDirectory) Source() BankSource {
	if d == nil {
		return ""
	}
	return d.source
}

func (d *BankDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.banks)
}

func (d *BankDirectory) Banks() []Bank {
	if d == nil {
		return nil
	}
	out := make([]Bank, len(d.banks))
	copy(out, d.banks)
	return out
}

func (d *BankDirectory) Codes() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.banks))
	for _, b := range d.banks {
		out = append(out, b.Code)
	}
	return out
}

func (d *BankDirectory) Lookup(code string) (Bank, bool) {
	if d == nil {
		return Bank{}, false
	}
	i, ok := d.byCode[strings.TrimSpace(code)]
	if !ok {
		return Bank{}, false
	}
	return d.banks[i], true
}

func (d *BankDirectory) Contains(code string) bool {
	_, ok := d.Lookup(code)
	return ok
}

// Name resolves a display name for the code. An empty code renders as "-"
// and an unknown code renders as itself.
func (d *BankDirectory) Name(code string, lang Language) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "-"
	}
	b, ok := d.Lookup(code)
	if !ok {
		return code
	}
	return b.Name(lang)
}

// CodeByName maps a stored display name back to its code. English names
// match case-insensitively, Arabic names match exactly.
func (d *BankDirectory) CodeByName(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, b := range d.banks {
		if strings.EqualFold(b.NameEng, name) || b.NameArb == name {
			return b.Code, true
		}
	}
	return "", false
}

// FallbackBanks is the static directory used when the remote bank list is
// unavailable or empty.
func FallbackBanks() []Bank {
	out := make([]Bank, len(fallbackBanks))
	copy(out, fallbackBanks)
	return out
}

var fallbackBanks = []Bank{
	{Code: "51", NameEng: "NATIONAL BANK OF OMAN", NameArb: "البنك الوطني العماني"},
	{Code: "52", NameEng: "HSBC Bank Middle East Limited", NameArb: "بنك HSBC الشرق الأوسط"},
	{Code: "53", NameEng: "CITIBANK", NameArb: "سيتي بنك"},
	{Code: "54", NameEng: "MUSCAT AHLI BANK", NameArb: "بنك مسقط الأهلي"},
	{Code: "55", NameEng: "OMAN ARAB BANK", NameArb: "بنك عمان العربي"},
	{Code: "57", NameEng: "COMMERCIAL BANK OF OMAN", NameArb: "البنك التجاري العماني"},
	{Code: "58", NameEng: "HABIB BANK Ltd.", NameArb: "بنك حبيب المحدود"},
	{Code: "59", NameEng: "HABIB BANK A.G.ZURICH", NameArb: "بنك حبيب زيوريخ"},
	{Code: "60", NameEng: "BANK AL AHLI AL OMANI", NameArb: "البنك الأهلي العماني"},
	{Code: "61", NameEng: "BANK OF OMAN BAHRAIN AND KUWAIT", NameArb: "بنك عمان والبحرين والكويت"},
	{Code: "62", NameEng: "BANK DHOFAR", NameArb: "بنك ظفار"},
	{Code: "63", NameEng: "Bank Of Baroda", NameArb: "بنك بارودا"},
	{Code: "64", NameEng: "Standard Chartered Bank", NameArb: "بنك ستاندرد تشارترد"},
	{Code: "65", NameEng: "Bank Saderat Iran", NameArb: "بنك صادرات إيران"},
	{Code: "70", NameEng: "Oman Housing Bank", NameArb: "بنك الإسكان العماني"},
	{Code: "72", NameEng: "First Abu-Dhabi Bank", NameArb: "بنك أبوظبي الأول"},
	{Code: "73", NameEng: "OMAN INVESTMENT & FINANCE", NameArb: "الاستثمار والتمويل العماني"},
	{Code: "75", NameEng: "AL AHLI BANK", NameArb: "البنك الأهلي"},
	{Code: "76", NameEng: "Bank of Beirut", NameArb: "بنك بيروت"},
	{Code: "77", NameEng: "Sohar Bank", NameArb: "بنك صحار"},
	{Code: "78", NameEng: "Bank Muscat", NameArb: "بنك مسقط"},
	{Code: "79", NameEng: "Development Bank", NameArb: "بنك التنمية"},
	{Code: "80", NameEng: "NIZWA BANK", NameArb: "بنك نزوى"},
	{Code: "81", NameEng: "NATIONAL QATAR BANK", NameArb: "بنك قطر الوطني"},
	{Code: "82", NameEng: "MAISARA BANK", NameArb: "بنك ميسرة"},
	{Code: "83", NameEng: "ALIZZ ISLAMIC BANK", NameArb: "بنك العز الإسلامي"},
	{Code: "84", NameEng: "ALYUSR ISLAMIC BANK", NameArb: "بنك اليسر الإسلامي"},
	{Code: "85", NameEng: "Al Ahli Islamic Banking", NameArb: "الأهلي الإسلامي"},
	{Code: "86", NameEng: "Meethaq Islamic Bank", NameArb: "ميثاق الإسلامي"},
	{Code: "87", NameEng: "MUZN ISLAMIC BANKING", NameArb: "مزن الإسلامي"},
	{Code: "88", NameEng: "BNP PARIBAS", NameArb: "بي إن بي باريبا"},
}
