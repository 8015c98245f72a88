package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/af-corp/mlapi/internal/synth"
)

type synthOptions struct {
	out    string
	format string
	watch  bool
}

func newSynthCmd(opts *rootOptions) *cobra.Command {
	so := &synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the manifest for the configuration document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}

			format := s.loader.Config().Synth.OutputFormat
			if cmd.Flags().Changed("format") {
				format = so.format
			}
			f, err := synth.ParseFormat(format)
			if err != nil {
				return err
			}

			if err := s.emit(cmd.Context(), f, so.out); err != nil && !so.watch {
				return err
			}
			if !so.watch {
				return nil
			}
			return s.watch(cmd.Context(), f, so.out)
		},
	}
	cmd.Flags().StringVarP(&so.out, "out", "o", "", "write the manifest to this file instead of stdout")
	cmd.Flags().StringVarP(&so.format, "format", "f", "json", "manifest format (json, yaml)")
	cmd.Flags().BoolVarP(&so.watch, "watch", "w", false, "resynthesize whenever the document or settings change")
	return cmd
}

func (s *session) emit(ctx context.Context, format synth.Format, out string) error {
	m, err := s.compile(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf, format); err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err = s.cmd.OutOrStdout().Write(buf.Bytes())
	} else {
		err = os.WriteFile(out, buf.Bytes(), 0o644)
	}
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	s.logger.Info("manifest synthesized",
		"document", s.loader.DocumentPath(),
		"routes", m.Routes.Len(),
		"resources", len(m.Resources),
		"digest", m.Digest,
	)
	return nil
}

func (s *session) watch(ctx context.Context, format synth.Format, out string) error {
	s.loader.OnReload(func() {
		if err := s.emit(ctx, format, out); err != nil {
			s.logger.Error("resynthesis failed", "error", err)
		}
	})
	if err := s.loader.Watch(); err != nil {
		return err
	}
	defer s.loader.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.logger.Info("watching for changes", "document", s.loader.DocumentPath())
	<-ctx.Done()
	return nil
}
