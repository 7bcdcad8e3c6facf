package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sr-wizard/internal/domain"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	cfg, err := LoadConfig(paths)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(paths.ConfigPath()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}

func TestLoadConfigFillsMissingValues(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	body := strings.TrimSpace(`
api:
  base_url: https://api.example.om
fees:
  unit_rate: "25.500"
ui:
  language: ar
  notice_seconds: -4
`) + "\n"
	if err := EnsureDir(paths.ConfigRoot()); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := os.WriteFile(paths.ConfigPath(), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(paths)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.om" || cfg.API.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Fatalf("api = %+v", cfg.API)
	}
	if cfg.UI.Language != "ar" || cfg.UI.NoticeSeconds != 0 {
		t.Fatalf("ui = %+v", cfg.UI)
	}
	if cfg.Report.BaseURL != domain.DefaultReportBaseURL {
		t.Fatalf("report = %+v", cfg.Report)
	}
	rate, err := UnitRate(cfg)
	if err != nil || rate.String() != "25.5" {
		t.Fatalf("unit rate = %s, %v", rate, err)
	}
}

func TestLoadConfigRejectsBadUnitRate(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	if err := SaveYAML(paths.ConfigPath(), map[string]any{"fees": map[string]string{"unit_rate": "-1"}}); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}
	if _, err := LoadConfig(paths); err == nil || !strings.Contains(err.Error(), "unit_rate") {
		t.Fatalf("expected unit_rate error, got %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	cfg := DefaultConfig()
	cfg.Version = 0
	cfg.History.Enabled = false
	if err := SaveConfig(paths, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(paths)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Version != domain.Version || got.History.Enabled {
		t.Fatalf("config = %+v", got)
	}
}

func TestHistoryFileNameIsSafe(t *testing.T) {
	t.Parallel()

	if got := HistoryFileName(" SR/2026:001 "); got != "SR_2026_001.yaml" {
		t.Fatalf("HistoryFileName() = %q", got)
	}
}

func TestHistoryRoundTripSortsBySubmission(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("GST", 4*3600))
	records := []domain.HistoryRecord{
		{IncidentID: "2", IncidentNumber: "SR-2", CRNumber: "22", SubmittedAt: base.Add(time.Hour)},
		{IncidentID: "1", IncidentNumber: "SR-1", CRNumber: "11", Fees: "50.000", SubmittedAt: base},
	}
	for _, r := range records {
		if err := SaveHistory(paths, r); err != nil {
			t.Fatalf("SaveHistory: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(paths.HistoryDir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	got, err := LoadHistory(paths)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history count = %d, want 2", len(got))
	}
	if got[0].IncidentNumber != "SR-1" || got[1].IncidentNumber != "SR-2" {
		t.Fatalf("order = %q, %q", got[0].IncidentNumber, got[1].IncidentNumber)
	}
	if !got[0].SubmittedAt.Equal(base) || got[0].SubmittedAt.Location() != time.UTC {
		t.Fatalf("submitted_at = %v", got[0].SubmittedAt)
	}
	if got[0].Version != domain.Version || got[0].Fees != "50.000" {
		t.Fatalf("record = %+v", got[0])
	}

	entries, err := os.ReadDir(paths.HistoryDir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSaveHistoryReplacesSameIncident(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	if err := SaveHistory(paths, domain.HistoryRecord{IncidentNumber: "SR-9", PaymentCompleted: false}); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	if err := SaveHistory(paths, domain.HistoryRecord{IncidentNumber: "SR-9", PaymentCompleted: true}); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	got, err := LoadHistory(paths)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 1 || !got[0].PaymentCompleted {
		t.Fatalf("history = %+v", got)
	}
}

func TestSaveHistoryRequiresIncident(t *testing.T) {
	t.Parallel()

	if err := SaveHistory(NewPaths(t.TempDir()), domain.HistoryRecord{CRNumber: "1"}); err == nil {
		t.Fatal("expected error for record without incident")
	}
}

func TestLoadHistoryMissingDir(t *testing.T) {
	t.Parallel()

	got, err := LoadHistory(NewPaths(t.TempDir()))
	if err != nil || got != nil {
		t.Fatalf("LoadHistory() = %v, %v", got, err)
	}
}
