// Command srw-docs writes the srw command reference as markdown, man pages
// and YAML.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"sr-wizard/internal/cli"
)

type docsOptions struct {
	out      string
	formats  []string
	manTitle string
}

func main() {
	if err := newDocsCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "srw-docs: %v\n", err)
		os.Exit(1)
	}
}

func newDocsCommand() *cobra.Command {
	opts := docsOptions{}
	cmd := &cobra.Command{
		Use:           "srw-docs",
		Short:         "Generate the srw command reference.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return generateDocs(cli.NewRootCommand(io.Discard, io.Discard), opts)
		},
	}
	cmd.Flags().StringVar(&opts.out, "out", "docs", "Output directory.")
	cmd.Flags().StringSliceVar(&opts.formats, "format", []string{"markdown", "man"}, "Formats to generate (markdown|man|yaml).")
	cmd.Flags().StringVar(&opts.manTitle, "man-title", "SRW", "Title used in man page headers.")
	return cmd
}

func generateDocs(root *cobra.Command, opts docsOptions) error {
	if root == nil {
		return errors.New("root command is required")
	}
	if len(opts.formats) == 0 {
		return errors.New("at least one format is required")
	}

	markDisableAutoGen(root)

	for _, format := range opts.formats {
		var (
			dir string
			err error
		)
		switch format {
		case "markdown":
			dir = filepath.Join(opts.out, "cli")
			if err = resetDirectory(dir); err == nil {
				err = doc.GenMarkdownTree(root, dir)
			}
		case "man":
			dir = filepath.Join(opts.out, "man", "man1")
			head := &doc.GenManHeader{Title: opts.manTitle, Section: "1", Source: "srw"}
			if err = resetDirectory(dir); err == nil {
				err = doc.GenManTree(root, head, dir)
			}
		case "yaml":
			dir = filepath.Join(opts.out, "yaml")
			if err = resetDirectory(dir); err == nil {
				err = doc.GenYamlTree(root, dir)
			}
		default:
			return fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			return fmt.Errorf("generate %s docs: %w", format, err)
		}
	}
	return nil
}

func markDisableAutoGen(cmd *cobra.Command) {
	cmd.DisableAutoGenTag = true
	for _, child := range cmd.Commands() {
		markDisableAutoGen(child)
	}
}

func resetDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
