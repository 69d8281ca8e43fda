package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/ntriples"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Relabel     bool
	MetricsAddr string

	// IDGenerator overrides the load ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator ntriples.IDGenerator
}

// LoadResult is the output of load.
type LoadResult struct {
	File   string `json:"file"`
	Loaded int    `json:"loaded"`
	LoadID string `json:"load_id,omitempty"`
}

func (r LoadResult) String() string {
	if r.LoadID != "" {
		return fmt.Sprintf("loaded %d triple(s) from %s (load id %s)", r.Loaded, r.File, r.LoadID)
	}
	return fmt.Sprintf("loaded %d triple(s) from %s", r.Loaded, r.File)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <file.nt>",
		Short: "Bulk-load an N-Triples file",
		Long: `Bulk-load an N-Triples file through the batch builder, flushing every
batch_size triples. Use "-" to read standard input.

With --relabel, blank nodes are prefixed with a fresh UUIDv7 load ID so
loading the same file twice does not merge its blank nodes.

A syntax error stops the load; batches flushed before it stay written.

Examples:
  widetriple load data.nt
  widetriple load --relabel --metrics-addr :9090 dump.nt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Relabel, "relabel", false, "prefix blank node labels with a fresh load ID")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while loading")

	return cmd
}

func runLoad(cmd *cobra.Command, opts *LoadOptions, path string) error {
	out := opts.formatter(cmd)

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return out.Report(CodeInput, ExitCommandError, "open input", err)
		}
		defer f.Close()
		r = f
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, s.logger)
		if err != nil {
			return out.Report(CodeInput, ExitCommandError, "metrics listener", err)
		}
		defer stop()
	}

	var decOpts []ntriples.DecoderOption
	result := LoadResult{File: path}
	if opts.Relabel {
		gen := opts.IDGenerator
		if gen == nil {
			gen = ntriples.UUIDv7Generator{}
		}
		result.LoadID = gen.Generate()
		decOpts = append(decOpts, ntriples.WithLoadID(result.LoadID))
	}
	dec := ntriples.NewDecoder(r, decOpts...)

	var decodeErr error
	triples := func(yield func(ir.Triple) bool) {
		for t, err := range dec.All() {
			if err != nil {
				decodeErr = err
				return
			}
			if !yield(t) {
				return
			}
		}
	}

	start := time.Now()
	n, err := s.repo.InsertAll(ctx, triples)
	result.Loaded = n
	if err != nil {
		return out.Fail("load", err)
	}
	if decodeErr != nil {
		s.logger.WarnContext(ctx, "load stopped", "file", path, "loaded", n, "error", decodeErr)
		return out.Fail("load", decodeErr)
	}
	s.logger.InfoContext(ctx, "load complete", "file", path, "triples", n, "load_id", result.LoadID, "elapsed", time.Since(start))
	return out.Success(result)
}

// serveMetrics starts a /metrics endpoint on addr and returns a function
// that shuts it down.
func serveMetrics(addr string, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("metrics.http.start", "addr", ln.Addr().String(), "path", "/metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}
