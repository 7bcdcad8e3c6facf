package domain

import "testing"

func TestSRDetailsPaymentState(t *testing.T) {
	tests := []struct {
		name         string
		details      SRDetails
		paid         bool
		existing     bool
		needsPayment bool
	}{
		{
			name:         "fresh sr awaiting payment",
			details:      SRDetails{PaymentRequired: true},
			needsPayment: true,
		},
		{
			name:     "payment completed",
			details:  SRDetails{PaymentRequired: true, PaymentCompleted: true},
			paid:     true,
			existing: true,
		},
		{
			name:     "paid label",
			details:  SRDetails{PaymentRequired: true, StatusLabel: "Completed"},
			paid:     true,
			existing: false,
		},
		{
			name:     "no payment required",
			details:  SRDetails{},
			existing: true,
		},
		{
			name:         "existing flag",
			details:      SRDetails{PaymentRequired: true, ExistingSR: true},
			existing:     true,
			needsPayment: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.details.Paid(); got != tt.paid {
				t.Fatalf("Paid() = %v, want %v", got, tt.paid)
			}
			if got := tt.details.Existing(); got != tt.existing {
				t.Fatalf("Existing() = %v, want %v", got, tt.existing)
			}
			if got := tt.details.NeedsPayment(); got != tt.needsPayment {
				t.Fatalf("NeedsPayment() = %v, want %v", got, tt.needsPayment)
			}
		})
	}
}

func TestSRDetailsReportURL(t *testing.T) {
	d := SRDetails{CompanyID: "12345"}
	want := DefaultReportBaseURL + "?reportParam1=MTIzNDU="
	if got := d.ReportURL(""); got != want {
		t.Fatalf("ReportURL = %q, want %q", got, want)
	}
	if got := (SRDetails{}).ReportURL(""); got != "" {
		t.Fatalf("empty company id should yield no url, got %q", got)
	}
}

func TestSRDetailsStatusText(t *testing.T) {
	if got := (SRDetails{PaymentCompleted: true}).StatusText(); got != "Paid" {
		t.Fatalf("status = %q", got)
	}
	if got := (SRDetails{}).StatusText(); got != "Pending" {
		t.Fatalf("status = %q", got)
	}
	if got := (SRDetails{StatusLabel: "Open"}).StatusText(); got != "Open" {
		t.Fatalf("status = %q", got)
	}
}
