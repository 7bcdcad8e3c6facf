package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
	"sr-wizard/internal/state"
)

type App struct {
	Paths   state.Paths
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	Debug   bool
	Now     func() time.Time
	Getenv  func(string) string
	Global  GlobalOptions

	IsInteractiveTerminal func() bool
	RunRegisterWizard     RegisterWizardRunner
	OpenGateway           func(s Settings, sessionID string, log *zap.Logger) (gateway.Gateway, error)

	log *zap.Logger
}

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	APIURL   string
	Language string
	Offline  bool
	Fixtures string
}

// Settings is the resolved configuration for one command run.
type Settings struct {
	Config      domain.ConfigFile
	BaseURL     string
	Timeout     time.Duration
	Language    domain.Language
	UnitRate    decimal.Decimal
	NoticeDelay time.Duration
	Offline     bool
	Fixtures    string
}

func New(paths state.Paths, stdout io.Writer, stderr io.Writer) *App {
	a := &App{
		Paths:                 paths,
		Stdout:                stdout,
		Stderr:                stderr,
		Verbose:               true,
		Getenv:                os.Getenv,
		IsInteractiveTerminal: defaultIsInteractiveTerminal,
		RunRegisterWizard:     runRegisterWizardInteractive,
	}
	a.Now = func() time.Time {
		if v := strings.TrimSpace(a.Getenv("SRW_NOW")); v != "" {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts.UTC()
			}
		}
		return time.Now().UTC()
	}
	a.OpenGateway = a.openGateway
	return a
}

func (a *App) SetVerbose(verbose bool) {
	a.Verbose = verbose
	a.log = nil
}

func (a *App) SetDebug(debug bool) {
	a.Debug = debug
	a.log = nil
}

func (a *App) SetGlobal(opts GlobalOptions) {
	a.Global = opts
}

func (a *App) level() zapcore.Level {
	switch {
	case a.Debug:
		return zapcore.DebugLevel
	case a.Verbose:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// logger writes human-readable lines to stderr for the one-shot commands.
func (a *App) logger() *zap.Logger {
	if a.log == nil {
		a.log = newConsoleLogger(a.Stderr, a.level())
	}
	return a.log
}

func newConsoleLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	enc.NameKey = "logger"
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Named("srw")
}

// fileLogger is used while the wizard owns the terminal. The returned
// close func flushes and closes the log file.
func (a *App) fileLogger() (*zap.Logger, func(), error) {
	path := a.Paths.LogPath()
	if err := state.EnsureDir(a.Paths.LocalStateRoot()); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log %s: %w", path, err)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), a.level())
	log := zap.New(core).Named("srw")
	return log, func() {
		_ = log.Sync()
		_ = f.Close()
	}, nil
}

// loadSettings merges config, environment and flags. Flags win over the
// environment, which wins over the config file.
func (a *App) loadSettings() (Settings, error) {
	cfg, err := state.LoadConfig(a.Paths)
	if err != nil {
		return Settings{}, err
	}
	rate, err := state.UnitRate(cfg)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		Config:      cfg,
		BaseURL:     cfg.API.BaseURL,
		Timeout:     time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		UnitRate:    rate,
		NoticeDelay: time.Duration(cfg.UI.NoticeSeconds) * time.Second,
		Offline:     a.Global.Offline,
		Fixtures:    strings.TrimSpace(a.Global.Fixtures),
	}
	if v := strings.TrimSpace(a.Getenv("SRW_API_URL")); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(a.Global.APIURL); v != "" {
		s.BaseURL = v
	}
	if s.Fixtures != "" {
		s.Offline = true
	}
	s.Language = a.resolveLanguage(cfg)
	a.logger().Debug("settings loaded",
		zap.String("config", a.Paths.ConfigPath()),
		zap.String("api", s.BaseURL),
		zap.String("lang", string(s.Language)),
		zap.Bool("offline", s.Offline))
	return s, nil
}

func (a *App) resolveLanguage(cfg domain.ConfigFile) domain.Language {
	candidates := []string{
		a.Global.Language,
		a.Getenv("SRW_LANG"),
	}
	if v := strings.TrimSpace(cfg.UI.Language); v != "" && !strings.EqualFold(v, state.LanguageAuto) {
		candidates = append(candidates, v)
	}
	candidates = append(candidates, a.Getenv("LC_ALL"), a.Getenv("LANG"))
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return domain.ParseLanguage(c)
		}
	}
	return domain.LanguageEnglish
}

func (a *App) openGateway(s Settings, sessionID string, log *zap.Logger) (gateway.Gateway, error) {
	if s.Offline {
		if s.Fixtures == "" {
			log.Debug("using built-in offline dataset")
			return gateway.DemoMemory(), nil
		}
		mem, err := gateway.LoadFixtures(s.Fixtures)
		if err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		log.Debug("using offline fixtures", zap.String("path", s.Fixtures))
		return mem, nil
	}
	return gateway.NewClient(gateway.Config{
		BaseURL:   s.BaseURL,
		Timeout:   s.Timeout,
		Language:  s.Language,
		SessionID: sessionID,
		Logger:    log,
	})
}

// connect resolves settings and opens a gateway for a one-shot command.
func (a *App) connect() (Settings, gateway.Gateway, error) {
	s, err := a.loadSettings()
	if err != nil {
		return Settings{}, nil, err
	}
	gw, err := a.OpenGateway(s, uuid.NewString(), a.logger())
	if err != nil {
		return Settings{}, nil, err
	}
	return s, gw, nil
}

func (a *App) commandContext(s Settings) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
