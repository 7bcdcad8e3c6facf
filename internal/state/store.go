package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"sr-wizard/internal/domain"
)

const (
	ConfigDirName  = ".config/srw"
	LocalStateDir  = ".local/state/srw"
	ConfigFileName = "config.yaml"
	HistoryDirName = "history"
	LogFileName    = "srw.log"

	DefaultUnitRate       = "50.000"
	DefaultTimeoutSeconds = 30
	DefaultNoticeSeconds  = 3
	DefaultAPIBaseURL     = "http://localhost:8087"

	// LanguageAuto defers to SRW_LANG and then the locale environment.
	LanguageAuto = "auto"
)

type Paths struct {
	Home string
}

func NewPaths(home string) Paths {
	return Paths{Home: home}
}

func (p Paths) ConfigRoot() string {
	return filepath.Join(p.Home, ConfigDirName)
}

func (p Paths) LocalStateRoot() string {
	return filepath.Join(p.Home, LocalStateDir)
}

func (p Paths) ConfigPath() string {
	return filepath.Join(p.ConfigRoot(), ConfigFileName)
}

func (p Paths) HistoryDir() string {
	return filepath.Join(p.LocalStateRoot(), HistoryDirName)
}

func (p Paths) LogPath() string {
	return filepath.Join(p.LocalStateRoot(), LogFileName)
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func DefaultConfig() domain.ConfigFile {
	return domain.ConfigFile{
		Version: domain.Version,
		API:     domain.APIConfig{BaseURL: DefaultAPIBaseURL, TimeoutSeconds: DefaultTimeoutSeconds},
		Fees:    domain.FeesConfig{UnitRate: DefaultUnitRate},
		UI:      domain.UIConfig{Language: LanguageAuto, NoticeSeconds: DefaultNoticeSeconds},
		Report:  domain.ReportConfig{BaseURL: domain.DefaultReportBaseURL},
		History: domain.HistoryConfig{Enabled: true},
	}
}

// LoadConfig reads the config file, writing the defaults on first use.
// Missing values fall back to their defaults.
func LoadConfig(paths Paths) (domain.ConfigFile, error) {
	cfgPath := paths.ConfigPath()
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveYAML(cfgPath, cfg); err != nil {
			return domain.ConfigFile{}, err
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	if err := LoadYAML(cfgPath, &cfg); err != nil {
		return domain.ConfigFile{}, fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	if cfg.Version == 0 {
		cfg.Version = domain.Version
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if _, err := UnitRate(cfg); err != nil {
		return domain.ConfigFile{}, fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	if strings.TrimSpace(cfg.Fees.UnitRate) == "" {
		cfg.Fees.UnitRate = DefaultUnitRate
	}
	if strings.TrimSpace(cfg.UI.Language) == "" {
		cfg.UI.Language = LanguageAuto
	}
	if cfg.UI.NoticeSeconds < 0 {
		cfg.UI.NoticeSeconds = 0
	}
	if strings.TrimSpace(cfg.Report.BaseURL) == "" {
		cfg.Report.BaseURL = domain.DefaultReportBaseURL
	}
	return cfg, nil
}

func SaveConfig(paths Paths, cfg domain.ConfigFile) error {
	cfg.Version = domain.Version
	return SaveYAML(paths.ConfigPath(), cfg)
}

// UnitRate parses the configured per-year fee. An empty value is the default.
func UnitRate(cfg domain.ConfigFile) (decimal.Decimal, error) {
	raw := strings.TrimSpace(cfg.Fees.UnitRate)
	if raw == "" {
		raw = DefaultUnitRate
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fees.unit_rate %q: %w", raw, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("fees.unit_rate must be positive, got %s", raw)
	}
	return rate, nil
}

func HistoryFileName(incidentNumber string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "?", "_", "*", "_")
	return replacer.Replace(strings.TrimSpace(incidentNumber)) + ".yaml"
}

func HistoryPath(paths Paths, incidentNumber string) string {
	return filepath.Join(paths.HistoryDir(), HistoryFileName(incidentNumber))
}

// SaveHistory records one submission. A later submission for the same
// incident replaces the earlier record.
func SaveHistory(paths Paths, rec domain.HistoryRecord) error {
	rec.Version = domain.Version
	key := rec.IncidentNumber
	if strings.TrimSpace(key) == "" {
		key = rec.IncidentID
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("incident_number or incident_id is required")
	}
	rec.SubmittedAt = rec.SubmittedAt.UTC()
	return saveYAMLAtomic(HistoryPath(paths, key), rec)
}

func LoadHistory(paths Paths) ([]domain.HistoryRecord, error) {
	dir := paths.HistoryDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		var rec domain.HistoryRecord
		if err := LoadYAML(filepath.Join(dir, e.Name()), &rec); err != nil {
			return nil, fmt.Errorf("parse history record %s: %w", e.Name(), err)
		}
		if rec.IncidentID == "" && rec.IncidentNumber == "" {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].IncidentNumber < out[j].IncidentNumber
	})
	return out, nil
}

func LoadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return err
	}
	return nil
}

func SaveYAML(path string, in any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	b, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// saveYAMLAtomic writes through a temp file in the same directory so readers
// never see a partial record.
func saveYAMLAtomic(path string, in any) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	b, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
