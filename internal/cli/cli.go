package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Presto-io/symfix/internal/config"
	"github.com/Presto-io/symfix/internal/escape"
)

// ErrNeedsFix is returned by check when a file still has unsafe or
// ambiguous literals.
var ErrNeedsFix = errors.New("files need escape corrections")

// app carries the flags and collaborators shared by every command.
type app struct {
	manifestJSON string
	exampleTS    string

	configPath string
	field      string
	prefix     string
	verbose    bool

	cfg       config.Config
	corrector *escape.Corrector
	logger    *zap.Logger
}

// Run implements the standard tool CLI protocol:
//   - --manifest → print manifestJSON
//   - --example  → print exampleTS
//   - --version  → extract and print version from manifestJSON
//   - fix/check/watch/verify subcommands
//   - otherwise  → read stdin, correct it, print result
func Run(manifestJSON, exampleTS string) {
	cmd := NewRootCommand(manifestJSON, exampleTS)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree. It is separate from Run so tests
// can drive it with their own arguments and streams.
func NewRootCommand(manifestJSON, exampleTS string) *cobra.Command {
	a := &app{manifestJSON: manifestJSON, exampleTS: exampleTS}

	var manifestFlag, exampleFlag, versionFlag bool

	root := &cobra.Command{
		Use:   "symfix",
		Short: "Normalize backslash escaping of icon commands in generated symbol tables",
		Long: `symfix rewrites command literals such as { cmd: '\fa-home' } to the safe
form { cmd: '\\fa-home' }. Only literals of the configured field whose text starts
with the at-risk prefix are touched. Literals with three or more backslashes
are reported and left unchanged.

With no subcommand, the document is read from stdin and written to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case versionFlag:
				var m map[string]interface{}
				if err := json.Unmarshal([]byte(a.manifestJSON), &m); err == nil {
					if v, ok := m["version"]; ok {
						fmt.Fprintln(cmd.OutOrStdout(), v)
					}
				}
				return nil
			case manifestFlag:
				fmt.Fprint(cmd.OutOrStdout(), a.manifestJSON)
				return nil
			case exampleFlag:
				fmt.Fprint(cmd.OutOrStdout(), a.exampleTS)
				return nil
			}
			return a.filter(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.Flags().BoolVar(&manifestFlag, "manifest", false, "output manifest JSON")
	root.Flags().BoolVar(&exampleFlag, "example", false, "output example symbol table")
	root.Flags().BoolVar(&versionFlag, "version", false, "output version")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.field, "field", "", "field whose literals are corrected (default from config: cmd)")
	pf.StringVar(&a.prefix, "prefix", "", "at-risk prefix after the backslashes (default from config: fa)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.fixCommand(),
		a.checkCommand(),
		a.watchCommand(),
		a.verifyCommand(),
	)
	return root
}

// setup loads configuration, applies flag overrides, and builds the logger
// and corrector.
func (a *app) setup(cmd *cobra.Command) error {
	a.logger = NewLogger(a.verbose, cmd.ErrOrStderr())

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.field != "" {
		cfg.Rule.Field = a.field
	}
	if a.prefix != "" {
		cfg.Rule.Prefix = a.prefix
	}

	c, err := escape.New(cfg.Rule.Escape(), escape.WithSnippetWidth(cfg.SnippetWidth))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.corrector = c
	a.logger.Debug("configured",
		zap.String("field", cfg.Rule.Field),
		zap.String("prefix", cfg.Rule.Prefix),
		zap.String("config", a.configPath))
	return nil
}

// filter corrects r into w. Diagnostics go to the log so w stays a clean document.
func (a *app) filter(r io.Reader, w io.Writer) error {
	input, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	res := a.corrector.Correct(string(input))
	a.logDiagnostics("<stdin>", res.Diagnostics)
	a.logger.Info("corrected stdin", zap.Int("fixed", res.Changed), zap.Int("matched", res.Matched))

	_, err = io.WriteString(w, res.Document)
	return err
}

func (a *app) logDiagnostics(path string, diags []escape.Diagnostic) {
	for _, d := range diags {
		a.logger.Warn("ambiguous escape left unchanged",
			zap.String("path", path),
			zap.Int("line", d.Line),
			zap.Int("column", d.Column),
			zap.Int("offset", d.Offset),
			zap.Int("run", d.Run),
			zap.String("literal", d.Snippet))
	}
}

// NewLogger returns a console logger writing to w. verbose enables debug output.
func NewLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}
