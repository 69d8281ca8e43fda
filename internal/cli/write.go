package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/widetriple/internal/ir"
)

// WriteResult is the output of insert and delete.
type WriteResult struct {
	Op     string `json:"op"`
	Triple string `json:"triple"`
}

func (r WriteResult) String() string {
	return fmt.Sprintf("%s %s", r.Op, r.Triple)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <subject> <predicate> <object>",
		Short: "Insert one triple",
		Long: `Insert one triple. Each argument is an N-Triples term.

Example:
  widetriple insert '<http://ex.org/a>' '<http://ex.org/name>' '"Alice"@en'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, args, "insert", "inserted", func(s *session, ctx context.Context, t ir.Triple) error {
				return s.repo.Insert(ctx, t)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <subject> <predicate> <object>",
		Short: "Delete one triple",
		Long: `Delete one triple and any index memberships it alone justified.
Deleting an absent triple succeeds.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, args, "delete", "deleted", func(s *session, ctx context.Context, t ir.Triple) error {
				return s.repo.Delete(ctx, t)
			})
		},
	}
}

func runWrite(cmd *cobra.Command, opts *RootOptions, args []string, verb, done string, apply func(*session, context.Context, ir.Triple) error) error {
	out := opts.formatter(cmd)
	t, err := parseTripleArgs(args)
	if err != nil {
		return out.Fail("parse triple", err)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := apply(s, ctx, t); err != nil {
		return s.out.Fail(verb, err)
	}
	return s.out.Success(WriteResult{Op: done, Triple: t.String()})
}
