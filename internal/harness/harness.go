package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/widetriple/internal/config"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/memstore"
	"github.com/roach88/widetriple/internal/ntriples"
	"github.com/roach88/widetriple/internal/repository"
	"github.com/roach88/widetriple/internal/store"
	"github.com/roach88/widetriple/internal/testutil"
	"github.com/roach88/widetriple/internal/widecol"
)

// Harness executes the steps of one scenario.
type Harness struct {
	repo   *repository.Repository
	rec    *testutil.RecordingBackend
	loadID string
	logger *slog.Logger
}

// Run executes a scenario on a fresh backend and returns the result.
//
// Execution flow:
// 1. Open a fresh backend wrapped in a call recorder
// 2. Run setup steps (any error aborts the run)
// 3. Run flow steps, checking expect clauses
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.repo.Close()

	result := NewResult()
	for i, step := range scenario.Setup {
		ev := h.execute(ctx, step)
		ev.Phase = "setup"
		result.AddTrace(ev)
		if ev.Error != "" {
			return nil, fmt.Errorf("setup step %d (%s): %s", i, step.Op, ev.Error)
		}
	}

	for i, step := range scenario.Flow {
		ev := h.execute(ctx, step)
		ev.Phase = "flow"
		result.AddTrace(ev)
		for _, msg := range checkExpect(step, ev) {
			result.AddError(fmt.Sprintf("flow step %d (%s): %s", i, step.Op, msg))
		}
		h.logger.Info("flow step completed", "step", i, "op", step.Op, "error", ev.Error)
	}

	actx := &AssertionContext{Ctx: ctx, Repo: h.repo, Backend: h.rec}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	cfg := config.Default()
	cfg.Servers = []string{"memory:"}
	c := scenario.Config
	if c.Directions != nil {
		cfg.Index.Directions = c.Directions
	}
	if c.SliceSize > 0 {
		cfg.SliceSize = c.SliceSize
	}
	if c.BatchSize > 0 {
		cfg.BatchSize = c.BatchSize
	}
	if c.Consistency != "" {
		cfg.Consistency = c.Consistency
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	var backend widecol.Backend
	switch scenario.Backend {
	case "", "memory":
		backend = memstore.New()
	case "sqlite":
		st, err := store.Open(":memory:", cfg.Keyspace)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		backend = st
	default:
		return nil, fmt.Errorf("unknown backend %q", scenario.Backend)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := testutil.NewRecordingBackend(backend)
	repo, err := repository.New(rec, cfg,
		repository.WithClock(testutil.NewDeterministicClock()),
		repository.WithLogger(logger),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	var loadID string
	if scenario.LoadID != "" {
		loadID = testutil.NewFixedIDGenerator(scenario.LoadID).Generate()
	}
	return &Harness{repo: repo, rec: rec, loadID: loadID, logger: logger}, nil
}

// execute runs one step and describes it as a trace event.
func (h *Harness) execute(ctx context.Context, step Step) TraceEvent {
	ev := TraceEvent{Op: step.Op}
	fail := func(err error) TraceEvent {
		ev.Error = err.Error()
		return ev
	}

	switch step.Op {
	case OpInsert, OpDelete, OpHas:
		t, err := ParseTriple(step.Triple)
		if err != nil {
			return fail(err)
		}
		ev.Input = t.String()
		switch step.Op {
		case OpInsert:
			err = h.repo.Insert(ctx, t)
		case OpDelete:
			err = h.repo.Delete(ctx, t)
		default:
			var ok bool
			ok, err = h.repo.Has(ctx, t)
			ev.Result = map[string]any{"value": ok}
		}
		if err != nil {
			return fail(err)
		}

	case OpLoad:
		var opts []ntriples.DecoderOption
		if h.loadID != "" {
			opts = append(opts, ntriples.WithLoadID(h.loadID))
		}
		dec := ntriples.NewDecoder(strings.NewReader(step.NTriples), opts...)
		var parseErr error
		n, err := h.repo.InsertAll(ctx, func(yield func(ir.Triple) bool) {
			for t, err := range dec.All() {
				if err != nil {
					parseErr = err
					return
				}
				if !yield(t) {
					return
				}
			}
		})
		ev.Result = map[string]any{"loaded": n}
		if err == nil {
			err = parseErr
		}
		if err != nil {
			return fail(err)
		}

	case OpQuery:
		p, err := step.Pattern.pattern()
		if err != nil {
			return fail(err)
		}
		ev.Input = p.String()
		var lines []string
		for t, err := range h.repo.Query(ctx, p) {
			if err != nil {
				return fail(err)
			}
			lines = append(lines, t.String())
		}
		slices.Sort(lines)
		ev.Result = map[string]any{"count": len(lines), "triples": nonNil(lines)}

	case OpCount:
		n, err := h.repo.Count(ctx)
		if err != nil {
			return fail(err)
		}
		ev.Result = map[string]any{"count": n}

	case OpEmpty:
		ok, err := h.repo.Empty(ctx)
		if err != nil {
			return fail(err)
		}
		ev.Result = map[string]any{"value": ok}

	case OpHasSubject, OpHasPredicate, OpHasObject:
		term, err := ir.ParseTerm(step.Term)
		if err != nil {
			return fail(err)
		}
		ev.Input = term.String()
		var ok bool
		switch step.Op {
		case OpHasSubject:
			ok, err = h.repo.HasSubject(ctx, term)
		case OpHasPredicate:
			iri, isIRI := term.(ir.IRI)
			if !isIRI {
				return fail(fmt.Errorf("predicate must be an IRI, got %s", term))
			}
			ok, err = h.repo.HasPredicate(ctx, iri)
		default:
			ok, err = h.repo.HasObject(ctx, term)
		}
		if err != nil {
			return fail(err)
		}
		ev.Result = map[string]any{"value": ok}

	case OpClear:
		n, err := h.repo.Clear(ctx)
		if err != nil {
			return fail(err)
		}
		ev.Result = map[string]any{"rows": n}

	case OpAudit:
		report, err := h.repo.Audit(ctx)
		if err != nil {
			return fail(err)
		}
		drift := make([]string, 0, len(report.Drift))
		for _, d := range report.Drift {
			drift = append(drift, d.String())
		}
		slices.Sort(drift)
		ev.Result = map[string]any{
			"clean":       report.Clean(),
			"drift":       drift,
			"memberships": report.Memberships,
			"triples":     report.Triples,
		}

	default:
		return fail(fmt.Errorf("unknown op %q", step.Op))
	}
	return ev
}

// ParseTriple parses one N-Triples statement.
func ParseTriple(s string) (ir.Triple, error) {
	return ntriples.NewDecoder(strings.NewReader(s)).Decode()
}

func (p *PatternSpec) pattern() (ir.Pattern, error) {
	var out ir.Pattern
	if p == nil {
		return out, nil
	}
	for _, pos := range []struct {
		src string
		dst *ir.Term
	}{
		{p.Subject, &out.Subject},
		{p.Predicate, &out.Predicate},
		{p.Object, &out.Object},
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
	return out, out.Validate()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// checkExpect compares a step's event with its expect clause.
func checkExpect(step Step, ev TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		if ev.Error != "" {
			return []string{"unexpected error: " + ev.Error}
		}
		return nil
	}

	var errs []string
	if exp.Error != "" {
		if !strings.Contains(ev.Error, exp.Error) {
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", exp.Error, ev.Error))
		}
		return errs
	}
	if ev.Error != "" {
		return []string{"unexpected error: " + ev.Error}
	}

	if exp.Count != nil {
		if got, ok := ev.Result["count"].(int); !ok || got != *exp.Count {
			errs = append(errs, fmt.Sprintf("expected count %d, got %v", *exp.Count, ev.Result["count"]))
		}
	}
	if exp.Value != nil {
		if got, ok := ev.Result["value"].(bool); !ok || got != *exp.Value {
			errs = append(errs, fmt.Sprintf("expected value %t, got %v", *exp.Value, ev.Result["value"]))
		}
	}
	if exp.Triples != nil {
		want := make([]string, 0, len(exp.Triples))
		for _, line := range exp.Triples {
			t, err := ParseTriple(line)
			if err != nil {
				errs = append(errs, fmt.Sprintf("expected triple %q: %v", line, err))
				continue
			}
			want = append(want, t.String())
		}
		slices.Sort(want)
		got, _ := ev.Result["triples"].([]string)
		if !slices.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("expected triples %v, got %v", want, got))
		}
	}
	return errs
}
