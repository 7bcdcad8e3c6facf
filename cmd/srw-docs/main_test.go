package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sr-wizard/internal/cli"
)

func TestGenerateDocs(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	opts := docsOptions{out: out, formats: []string{"markdown", "man", "yaml"}, manTitle: "SRW"}
	if err := generateDocs(cli.NewRootCommand(io.Discard, io.Discard), opts); err != nil {
		t.Fatalf("generateDocs error = %v", err)
	}

	mustFileExists(t, filepath.Join(out, "man", "man1", "srw.1"))
	mustFileExists(t, filepath.Join(out, "man", "man1", "srw-sr-show.1"))
	mustFileExists(t, filepath.Join(out, "yaml", "srw_register.yaml"))

	content, err := os.ReadFile(filepath.Join(out, "cli", "srw.md"))
	if err != nil {
		t.Fatalf("read generated root markdown: %v", err)
	}
	for _, want := range []string{"register", "receipt", "completion", "--offline"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected root markdown to mention %q, got:\n%s", want, string(content))
		}
	}
}

func TestGenerateDocsRejectsBadInput(t *testing.T) {
	t.Parallel()

	if err := generateDocs(nil, docsOptions{out: t.TempDir(), formats: []string{"markdown"}}); err == nil {
		t.Fatal("expected error for nil root command")
	}
	root := cli.NewRootCommand(io.Discard, io.Discard)
	if err := generateDocs(root, docsOptions{out: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty format list")
	}
	if err := generateDocs(root, docsOptions{out: t.TempDir(), formats: []string{"pdf"}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func mustFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file %s to exist: %v", path, err)
	}
}
