package app

import (
	"fmt"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func defaultIsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunConfigShow prints the effective configuration: the file on disk with
// environment and flag overrides applied.
func (a *App) RunConfigShow() (int, error) {
	s, err := a.loadSettings()
	if err != nil {
		return 2, err
	}
	cfg := s.Config
	cfg.API.BaseURL = s.BaseURL
	cfg.UI.Language = string(s.Language)

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return 1, err
	}
	fmt.Fprintf(a.Stdout, "# %s\n", a.Paths.ConfigPath())
	if s.Offline {
		source := "built-in dataset"
		if s.Fixtures != "" {
			source = s.Fixtures
		}
		fmt.Fprintf(a.Stdout, "# offline: %s\n", source)
	}
	_, err = a.Stdout.Write(b)
	return 0, err
}
