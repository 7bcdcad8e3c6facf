package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"sr-wizard/internal/captcha"
)

// RunCaptchaPreview renders a fresh challenge. With out set the PNG is
// written there, otherwise the terminal art goes to stdout.
func (a *App) RunCaptchaPreview(out string) (int, error) {
	c := captcha.New()
	out = strings.TrimSpace(out)
	if out == "" {
		for _, line := range c.Art() {
			fmt.Fprintln(a.Stdout, line)
		}
		return 0, nil
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 1, err
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return 1, err
	}
	if err := c.WritePNG(f); err != nil {
		_ = f.Close()
		return 1, err
	}
	if err := f.Close(); err != nil {
		return 1, err
	}
	a.logger().Info("captcha written", zap.String("path", out))
	return 0, nil
}
