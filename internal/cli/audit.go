package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/widetriple/internal/index"
)

// AuditResult is the output of audit.
type AuditResult struct {
	Memberships int      `json:"memberships"`
	Triples     int      `json:"triples"`
	Malformed   int      `json:"malformed"`
	Drift       []string `json:"drift"`
}

func newAuditResult(r index.DriftReport) AuditResult {
	res := AuditResult{
		Memberships: r.Memberships,
		Triples:     r.Triples,
		Malformed:   r.Malformed,
		Drift:       make([]string, len(r.Drift)),
	}
	for i, d := range r.Drift {
		res.Drift[i] = d.String()
	}
	return res
}

func (r AuditResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "checked %d membership(s) and %d triple(s)", r.Memberships, r.Triples)
	if r.Malformed > 0 {
		fmt.Fprintf(&b, ", %d malformed index entries skipped", r.Malformed)
	}
	if len(r.Drift) == 0 {
		fmt.Fprintf(&b, "\n%s index clean", color.GreenString("✓"))
		return b.String()
	}
	for _, d := range r.Drift {
		fmt.Fprintf(&b, "\n%s %s", color.RedString("✗"), d)
	}
	return b.String()
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the secondary indexes against the stored triples",
		Long: `Check every enabled index against the primary families and report
stale memberships (no justifying triple) and missing ones. Audit never
repairs anything.

Exit codes:
  0 - Indexes agree with the stored triples
  1 - Drift found, or a store error
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.repo.Audit(ctx)
			if err != nil {
				return s.out.Fail("audit", err)
			}
			result := newAuditResult(report)
			if report.Clean() {
				return s.out.Success(result)
			}

			msg := fmt.Sprintf("%d index entries drifted", len(report.Drift))
			if s.out.Format == "json" {
				if err := s.out.encode(CLIResponse{
					Status: "error",
					Data:   result,
					Error:  &CLIError{Code: CodeDrift, Message: msg},
				}); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(s.out.Writer, result)
			}
			return NewExitError(ExitFailure, msg)
		},
	}
}

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Yes bool
}

// ClearResult is the output of clear.
type ClearResult struct {
	Rows int `json:"rows"`
}

func (r ClearResult) String() string { return fmt.Sprintf("cleared %d row(s)", r.Rows) }

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every row of the primary and index families",
		Long: `Delete every row of the configured primary families and enabled
index families. Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "clear deletes every stored triple; pass --yes to confirm")
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.repo.Clear(ctx)
			if err != nil {
				return s.out.Fail("clear", err)
			}
			return s.out.Success(ClearResult{Rows: n})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm deletion")

	return cmd
}
