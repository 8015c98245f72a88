package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/af-corp/mlapi/internal/config"
	"github.com/af-corp/mlapi/internal/output"
	"github.com/af-corp/mlapi/internal/policy"
	"github.com/af-corp/mlapi/internal/router/adapters"
	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/synth"
	"github.com/af-corp/mlapi/internal/telemetry"
)

var errRejected = errors.New("configuration rejected")

// session is the loaded settings, document and compiler for one command.
type session struct {
	cmd      *cobra.Command
	loader   *config.Loader
	logger   *slog.Logger
	compiler *synth.Compiler
}

func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	bootLevel := o.logLevel
	if bootLevel == "" {
		bootLevel = "warn"
	}
	loader := config.NewLoader(o.settingsPath, o.documentPath, telemetry.NewLogger(cmd.ErrOrStderr(), bootLevel, "text"))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	cfg := loader.Config()

	level := cfg.Telemetry.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), level, "text")

	opts := synth.Options{
		Environment: adapters.Environment{Region: cfg.Synth.Region, Account: cfg.Synth.Account},
		Logger:      logger,
		Source:      "cli",
	}
	if cfg.Policy.Enabled {
		evaluator := policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy }, nil)
		if err := evaluator.Load(); err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
		opts.Gate = evaluator
	}

	return &session{
		cmd:      cmd,
		loader:   loader,
		logger:   logger,
		compiler: synth.NewCompiler(opts),
	}, nil
}

// compile synthesizes the current document. Violations are printed to
// stderr and reported as errRejected.
func (s *session) compile(ctx context.Context) (*synth.Manifest, error) {
	m, err := s.compiler.Compile(ctx, s.loader.Document())
	if err == nil {
		return m, nil
	}
	var ve *schema.ViolationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	if perr := output.NewFormatter(s.cmd.ErrOrStderr(), output.FormatTable).PrintViolations(ve.Violations); perr != nil {
		s.logger.Error("failed to print violations", "error", perr)
	}
	return nil, fmt.Errorf("%w: %s has %d violation(s)", errRejected, s.loader.DocumentPath(), len(ve.Violations))
}
