package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/widetriple/internal/index"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/repository"
	"github.com/roach88/widetriple/internal/testutil"
)

// AssertionContext gives assertions access to the final state.
type AssertionContext struct {
	Ctx     context.Context
	Repo    *repository.Repository
	Backend *testutil.RecordingBackend
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Op, event.Input)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: trace}
	}

	switch a.Type {
	case AssertContains, AssertNotContains:
		t, err := ParseTriple(a.Triple)
		if err != nil {
			return err
		}
		has, err := actx.Repo.Has(actx.Ctx, t)
		if err != nil {
			return err
		}
		if want := a.Type == AssertContains; has != want {
			return fail(fmt.Sprintf("stored=%t for %s", want, t), fmt.Sprintf("stored=%t", has))
		}

	case AssertCount:
		n, err := actx.Repo.Count(actx.Ctx)
		if err != nil {
			return err
		}
		if n != a.Count {
			return fail(fmt.Sprintf("%d triples", a.Count), fmt.Sprintf("%d triples", n))
		}

	case AssertStoreCalls:
		n := len(actx.Backend.CallsTo(a.Op))
		if n != a.Count {
			return fail(fmt.Sprintf("%d %s calls", a.Count, a.Op), fmt.Sprintf("%d %s calls", n, a.Op))
		}

	case AssertBatchSizes:
		got := actx.Backend.BatchSizes()
		if !slices.Equal(got, a.Sizes) {
			return fail(fmt.Sprintf("batch sizes %v", a.Sizes), fmt.Sprintf("batch sizes %v", got))
		}

	case AssertMembership:
		d, err := index.ParseDirection(a.Direction)
		if err != nil {
			return err
		}
		term, err := ir.ParseTerm(a.Term)
		if err != nil {
			return err
		}
		has, err := actx.Repo.Index().HasMember(actx.Ctx, d, term)
		if err != nil {
			return err
		}
		if has != a.Value {
			return fail(fmt.Sprintf("%s membership for %s = %t", d, term, a.Value), fmt.Sprintf("%t", has))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
