package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sr-wizard/internal/app"
	"sr-wizard/internal/state"
)

type appRunner interface {
	SetVerbose(verbose bool)
	SetDebug(debug bool)
	SetGlobal(opts app.GlobalOptions)
	RunRegister() (int, error)
	RunBanks(jsonOut bool) (int, error)
	RunSRShow(opts app.SRShowOptions) (int, error)
	RunSRExists(crNumber string) (int, error)
	RunReceipt(opts app.ReceiptOptions) (int, error)
	RunLookup(kind string, jsonOut bool) (int, error)
	RunCaptchaPreview(out string) (int, error)
	RunHistory(jsonOut bool) (int, error)
	RunConfigShow() (int, error)
}

type runDeps struct {
	userHomeDir func() (string, error)
	newApp      func(paths state.Paths, stdout io.Writer, stderr io.Writer) appRunner
}

type runtimeState struct {
	stdout io.Writer
	stderr io.Writer
	quiet  bool
	debug  bool
	global app.GlobalOptions

	deps runDeps
	app  appRunner
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func defaultRunDeps() runDeps {
	return runDeps{
		userHomeDir: os.UserHomeDir,
		newApp: func(paths state.Paths, stdout io.Writer, stderr io.Writer) appRunner {
			return app.New(paths, stdout, stderr)
		},
	}
}

func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	return runWithDeps(args, stdout, stderr, defaultRunDeps())
}

func NewRootCommand(stdout io.Writer, stderr io.Writer) *cobra.Command {
	runtime := &runtimeState{
		stdout: stdout,
		stderr: stderr,
		deps:   defaultRunDeps(),
	}
	cmd := newRootCommand(runtime)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func runWithDeps(args []string, stdout io.Writer, stderr io.Writer, deps runDeps) int {
	runtime := &runtimeState{
		stdout: stdout,
		stderr: stderr,
		deps:   deps,
	}

	cmd := newRootCommand(runtime)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var codedErr *exitError
	if errors.As(err, &codedErr) {
		if codedErr.err != nil {
			fmt.Fprintf(stderr, "srw: %v\n", codedErr.err)
		}
		if codedErr.code == 0 {
			return 2
		}
		return codedErr.code
	}

	fmt.Fprintf(stderr, "srw: %v\n", err)
	return 2
}

func (r *runtimeState) appRunner() (appRunner, error) {
	if r.app != nil {
		return r.app, nil
	}

	home, err := r.deps.userHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home: %w", err)
	}

	a := r.deps.newApp(state.NewPaths(home), r.stdout, r.stderr)
	a.SetVerbose(!r.quiet)
	a.SetDebug(r.debug)
	a.SetGlobal(r.global)
	r.app = a
	return r.app, nil
}

func newRootCommand(runtime *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "srw",
		Short:         "Register a company service request with the Ministry.",
		Long:          "srw walks through the company registration service request wizard and looks up existing requests, receipts and banks.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Help(); err != nil {
				return withExitCode(2, err)
			}
			return withExitCode(2, errors.New("a command is required"))
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(2, err)
	})

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&runtime.quiet, "quiet", "q", false, "Suppress informational logs.")
	flags.BoolVar(&runtime.debug, "debug", false, "Log gateway traffic at debug level.")
	flags.StringVar(&runtime.global.Language, "lang", "", "Interface language (en|ar).")
	flags.StringVar(&runtime.global.APIURL, "api-url", "", "Base URL of the service request API.")
	flags.BoolVar(&runtime.global.Offline, "offline", false, "Use the built-in dataset instead of the API.")
	flags.StringVar(&runtime.global.Fixtures, "fixtures", "", "Load the offline dataset from a YAML file (implies --offline).")

	cmd.AddCommand(
		newRegisterCommand(runtime),
		newBanksCommand(runtime),
		newSRCommand(runtime),
		newReceiptCommand(runtime),
		newLookupCommand(runtime),
		newCaptchaCommand(runtime),
		newHistoryCommand(runtime),
		newConfigCommand(runtime),
	)
	cmd.AddCommand(newCompletionCommand(runtime, cmd))

	return cmd
}

func withExitCode(code int, err error) error {
	if err == nil {
		if code == 0 {
			return nil
		}
		return &exitError{code: code}
	}
	if code == 0 {
		code = 2
	}
	return &exitError{code: code, err: err}
}

// newGroupCommand builds a parent command that only hosts subcommands.
func newGroupCommand(use string, short string) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Help(); err != nil {
				return withExitCode(2, err)
			}
			return withExitCode(2, fmt.Errorf("%s subcommand is required", use))
		},
	}
}

func newRegisterCommand(runtime *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Open the interactive registration wizard.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunRegister()
			return withExitCode(code, err)
		},
	}
}

func newBanksCommand(runtime *runtimeState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "banks",
		Short: "List banks accepted for payment.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunBanks(jsonOut)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print banks as JSON.")

	return cmd
}

func newSRCommand(runtime *runtimeState) *cobra.Command {
	srCmd := newGroupCommand("sr", "Look up service requests.")

	var showOpts app.SRShowOptions
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a service request by CR number or incident ID.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunSRShow(showOpts)
			return withExitCode(code, err)
		},
	}
	showCmd.Flags().StringVar(&showOpts.CRNumber, "cr", "", "Commercial registration number.")
	showCmd.Flags().StringVar(&showOpts.IncidentID, "incident", "", "Incident ID of the service request.")
	showCmd.Flags().BoolVar(&showOpts.JSON, "json", false, "Print the service request as JSON.")
	showCmd.MarkFlagsMutuallyExclusive("cr", "incident")

	var crNumber string
	existsCmd := &cobra.Command{
		Use:   "exists",
		Short: "Check whether a CR already has an active service request.",
		Long:  "Exits 0 when an active service request exists for the CR and 1 when none does.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunSRExists(crNumber)
			return withExitCode(code, err)
		},
	}
	existsCmd.Flags().StringVar(&crNumber, "cr", "", "Commercial registration number.")
	_ = existsCmd.MarkFlagRequired("cr")

	srCmd.AddCommand(showCmd, existsCmd)
	return srCmd
}

func newReceiptCommand(runtime *runtimeState) *cobra.Command {
	var opts app.ReceiptOptions

	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Show the payment receipt of a service request.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunReceipt(opts)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().StringVar(&opts.SRNumber, "sr", "", "Service request number (SR-...).")
	cmd.Flags().StringVar(&opts.IncidentID, "incident", "", "Incident ID of the service request.")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the receipt as JSON.")
	cmd.MarkFlagsMutuallyExclusive("sr", "incident")
	cmd.MarkFlagsOneRequired("sr", "incident")

	return cmd
}

func newLookupCommand(runtime *runtimeState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:       "lookup [degrees|years]",
		Short:     "Print a backend lookup table.",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"degrees", "years"},
		RunE: func(_ *cobra.Command, args []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunLookup(args[0], jsonOut)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the table as JSON.")

	return cmd
}

func newCaptchaCommand(runtime *runtimeState) *cobra.Command {
	captchaCmd := newGroupCommand("captcha", "Inspect the verification challenge.")

	var out string
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a fresh challenge to the terminal or a PNG file.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunCaptchaPreview(out)
			return withExitCode(code, err)
		},
	}
	previewCmd.Flags().StringVarP(&out, "out", "o", "", "Write the challenge as PNG to this path.")

	captchaCmd.AddCommand(previewCmd)
	return captchaCmd
}

func newHistoryCommand(runtime *runtimeState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List service requests submitted from this machine.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunHistory(jsonOut)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print history records as JSON.")

	return cmd
}

func newConfigCommand(runtime *runtimeState) *cobra.Command {
	configCmd := newGroupCommand("config", "Inspect srw configuration.")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runner, err := runtime.appRunner()
			if err != nil {
				return withExitCode(2, err)
			}
			code, err := runner.RunConfigShow()
			return withExitCode(code, err)
		},
	}

	configCmd.AddCommand(showCmd)
	return configCmd
}

func newCompletionCommand(runtime *runtimeState, root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts.",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(_ *cobra.Command, args []string) error {
			var err error
			switch args[0] {
			case "bash":
				err = root.GenBashCompletionV2(runtime.stdout, true)
			case "zsh":
				err = root.GenZshCompletion(runtime.stdout)
			case "fish":
				err = root.GenFishCompletion(runtime.stdout, true)
			case "powershell":
				err = root.GenPowerShellCompletionWithDesc(runtime.stdout)
			default:
				err = fmt.Errorf("unsupported shell %q", args[0])
			}
			return withExitCode(0, err)
		},
	}
}
