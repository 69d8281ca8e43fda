package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/widetriple/internal/ntriples"
	"github.com/roach88/widetriple/internal/widecol"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Subject   string
	Predicate string
	Object    string
	SliceSize int
}

// QueryResult is the JSON output of query.
type QueryResult struct {
	Pattern string   `json:"pattern"`
	Count   int      `json:"count"`
	Triples []string `json:"triples"`
	Skipped int64    `json:"skipped,omitempty"` // undecodable stored values
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the triples matching a pattern",
		Long: `Print the triples matching a pattern as N-Triples.

Each of --subject, --predicate and --object takes an N-Triples term;
an omitted position matches anything. With no flags every triple is
printed.

Examples:
  widetriple query --subject '<http://ex.org/a>'
  widetriple query --predicate '<http://ex.org/knows>' --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Subject, "subject", "s", "", "subject term")
	cmd.Flags().StringVarP(&opts.Predicate, "predicate", "p", "", "predicate IRI")
	cmd.Flags().StringVarP(&opts.Object, "object", "o", "", "object term")
	cmd.Flags().IntVar(&opts.SliceSize, "slice-size", 0, "rows per range scan page (0 uses the configured size)")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions) error {
	out := opts.formatter(cmd)
	pattern, err := parsePattern(opts.Subject, opts.Predicate, opts.Object)
	if err != nil {
		return out.Report(CodeInvalidTriple, ExitCommandError, "invalid pattern", err)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	seq := s.repo.Query(ctx, pattern, callOptions(opts.SliceSize)...)
	if opts.Format != "json" {
		n, err := ntriples.WriteAll(out.Writer, seq)
		if err != nil {
			return out.Fail("query", err)
		}
		out.VerboseLog("%d triple(s) matched %s, %d undecodable value(s) skipped", n, pattern, s.skipped.Load())
		return nil
	}

	result := QueryResult{Pattern: pattern.String(), Triples: []string{}}
	for t, err := range seq {
		if err != nil {
			return out.Fail("query", err)
		}
		result.Triples = append(result.Triples, t.String())
	}
	result.Count = len(result.Triples)
	result.Skipped = s.skipped.Load()
	return out.Success(result)
}

func callOptions(sliceSize int) []widecol.CallOption {
	if sliceSize <= 0 {
		return nil
	}
	return []widecol.CallOption{widecol.WithSliceSize(sliceSize)}
}

// CountResult is the output of count.
type CountResult struct {
	Count int `json:"count"`
}

func (r CountResult) String() string { return strconv.Itoa(r.Count) }

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count stored triples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.repo.Count(ctx)
			if err != nil {
				return s.out.Fail("count", err)
			}
			return s.out.Success(CountResult{Count: n})
		},
	}
}
