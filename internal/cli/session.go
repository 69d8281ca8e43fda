package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/roach88/widetriple/internal/config"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/ntriples"
	"github.com/roach88/widetriple/internal/repository"
	"github.com/roach88/widetriple/internal/rowmap"
)

// session is an open repository plus the output and logging a command
// works with. Callers must Close it.
type session struct {
	repo    *repository.Repository
	out     *OutputFormatter
	logger  *slog.Logger
	skipped *atomic.Int64 // undecodable stored values passed over
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession loads the configuration, applies global flag overrides and
// opens the repository on the first available server.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, out.Report(CodeConfig, ExitCommandError, "load config", err)
	}
	if opts.Consistency != "" {
		cfg.Consistency = opts.Consistency
	}

	skipped := new(atomic.Int64)
	repo, err := repository.Open(ctx, cfg,
		repository.WithLogger(logger),
		repository.WithDecodeErrorHandler(func(context.Context, *rowmap.DecodeError) { skipped.Add(1) }),
	)
	if err != nil {
		return nil, out.Fail("open repository", err)
	}
	logger.DebugContext(ctx, "session opened", "server", repo.Server(), "families", repo.Families())
	return &session{repo: repo, out: out, logger: logger, skipped: skipped}, nil
}

func (s *session) Close() {
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("close repository", "error", err)
	}
}

// parseTripleArgs reads "s p o" given as three N-Triples terms.
func parseTripleArgs(args []string) (ir.Triple, error) {
	stmt := strings.Join(args, " ") + " ."
	return ntriples.NewDecoder(strings.NewReader(stmt)).Decode()
}

// parsePattern builds a pattern from optional N-Triples terms; an empty
// string leaves that position unbound.
func parsePattern(subject, predicate, object string) (ir.Pattern, error) {
	var p ir.Pattern
	for _, pos := range []struct {
		src string
		dst *ir.Term
	}{
		{subject, &p.Subject},
		{predicate, &p.Predicate},
		{object, &p.Object},
	} {
		if pos.src == "" {
			continue
		}
		t, err := ir.ParseTerm(pos.src)
		if err != nil {
			return ir.Pattern{}, err
		}
		*pos.dst = t
	}
	return p, p.Validate()
}
