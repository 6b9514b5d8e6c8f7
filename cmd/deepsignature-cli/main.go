package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog" // Use structured logging
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehackedyou/deepsignature"
)

// Set at build time
var version = "dev"

type cliOptions struct {
	logLevel string
	docsTool string
	stdin    bool
	timeout  time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "deepsignature",
		Short:         "Signature help for Go call sites",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.docsTool, "docs-tool", "", "Docs tool format (godef, godoc, gogetdoc, guru) - overrides config")
	root.PersistentFlags().BoolVar(&opts.stdin, "stdin", false, "Read the document from stdin instead of the file")

	root.AddCommand(newLocateCommand(opts), newParseCommand(opts), newSignatureCommand(opts))
	return root
}

// newLocateCommand prints the call site enclosing a position.
func newLocateCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <file> <line> <col>",
		Short: "Print the enclosing call's open paren, commas and callee token",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, content, pos, err := readTarget(opts, args)
			if err != nil {
				return err
			}
			doc := deepsignature.NewTextDocument(string(content))
			call, ok := deepsignature.LocateCallSite(doc, pos)
			if !ok {
				return printJSON(cmd.OutOrStdout(), nil)
			}
			out := struct {
				*deepsignature.CallSite
				Token *deepsignature.Position `json:"token,omitempty"`
			}{CallSite: call}
			if tok, ok := deepsignature.PrecedingToken(doc, call.OpenParen); ok {
				out.Token = &tok
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

// newParseCommand parses declaration text the way a docs tool prints it.
func newParseCommand(opts *cliOptions) *cobra.Command {
	var name string
	var treeSitter bool
	cmd := &cobra.Command{
		Use:   "parse <declaration>",
		Short: "Parse declaration text into a signature label and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.logLevel)
			tool := deepsignature.DocsTool(opts.docsTool)
			if tool == "" {
				tool = deepsignature.DocsToolGodoc
			}
			format, ok := deepsignature.FormatForTool(tool.ForSignatureHelp())
			if !ok {
				return fmt.Errorf("%w: %q", deepsignature.ErrUnknownDeclarationFormat, tool)
			}
			sig, err := deepsignature.ParseSignature(deepsignature.RawDeclaration{
				Text:         args[0],
				Format:       format,
				FunctionName: name,
			}, deepsignature.NewParameterSplitter(treeSitter, logger))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sig)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Function name as it appears in the declaration")
	cmd.Flags().BoolVar(&treeSitter, "tree-sitter", true, "Split parameters with tree-sitter")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// newSignatureCommand runs the full signature help pipeline.
func newSignatureCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signature <file> <line> <col>",
		Short: "Print signature help for the call enclosing a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.logLevel)
			slog.SetDefault(logger)

			path, content, pos, err := readTarget(opts, args)
			if err != nil {
				return err
			}

			helper, initErr := deepsignature.NewSignatureHelper(logger)
			if initErr != nil && !errors.Is(initErr, deepsignature.ErrConfig) {
				return initErr
			}
			if initErr != nil {
				logger.Warn("SignatureHelper initialized with configuration warnings", "error", initErr)
			}
			defer func() {
				if err := helper.Close(); err != nil {
					logger.Error("Error closing signature helper", "error", err)
				}
			}()
			if opts.docsTool != "" {
				cfg := helper.GetCurrentConfig()
				cfg.DocsTool = deepsignature.DocsTool(opts.docsTool)
				if err := helper.UpdateConfig(cfg); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			result, err := helper.Resolve(ctx, path, content, pos)
			if err != nil {
				logger.Info("No signature help", "reason", err)
				return printJSON(cmd.OutOrStdout(), nil)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "Overall deadline")
	return cmd
}

// readTarget parses "<file> <line> <col>" with 1-based line and codepoint
// column and returns the absolute path, content and zero-based position.
func readTarget(opts *cliOptions, args []string) (string, []byte, deepsignature.Position, error) {
	var line, col int
	if _, err := fmt.Sscan(args[1], &line); err != nil || line <= 0 {
		return "", nil, deepsignature.Position{}, fmt.Errorf("invalid line %q: must be a positive integer", args[1])
	}
	if _, err := fmt.Sscan(args[2], &col); err != nil || col <= 0 {
		return "", nil, deepsignature.Position{}, fmt.Errorf("invalid col %q: must be a positive integer", args[2])
	}

	uri, err := deepsignature.PathToURI(args[0])
	if err != nil {
		return "", nil, deepsignature.Position{}, err
	}
	path, err := deepsignature.ValidateAndGetFilePath(uri)
	if err != nil {
		return "", nil, deepsignature.Position{}, err
	}

	var content []byte
	if opts.stdin {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return "", nil, deepsignature.Position{}, fmt.Errorf("reading document: %w", err)
	}
	return path, content, deepsignature.Position{Line: line - 1, Character: col - 1}, nil
}

func newLogger(level string) *slog.Logger {
	logLevel, err := deepsignature.ParseLogLevel(level)
	if err != nil {
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
