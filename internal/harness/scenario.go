package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/widetriple/internal/index"
)

// Scenario is a sequence of repository operations with expectations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Backend is "memory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// LoadID relabels blank nodes in load steps when set.
	LoadID string `yaml:"load_id,omitempty"`

	Config ScenarioConfig `yaml:"config,omitempty"`

	// Setup steps run before the flow. Their expect clauses are ignored.
	Setup []Step `yaml:"setup,omitempty"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioConfig overrides the repository defaults.
type ScenarioConfig struct {
	Directions  []string `yaml:"directions,omitempty"`
	SliceSize   int      `yaml:"slice_size,omitempty"`
	BatchSize   int      `yaml:"batch_size,omitempty"`
	Consistency string   `yaml:"consistency,omitempty"`
}

// Step is one repository operation.
type Step struct {
	Op string `yaml:"op"`

	// Triple is one N-Triples statement (insert, delete, has).
	Triple string `yaml:"triple,omitempty"`

	// NTriples is a document for load.
	NTriples string `yaml:"ntriples,omitempty"`

	// Term is one N-Triples term (has_subject, has_predicate, has_object).
	Term string `yaml:"term,omitempty"`

	// Pattern selects triples for query; omitted positions are wildcards.
	Pattern *PatternSpec `yaml:"pattern,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// PatternSpec is a triple pattern as N-Triples terms.
type PatternSpec struct {
	Subject   string `yaml:"subject,omitempty"`
	Predicate string `yaml:"predicate,omitempty"`
	Object    string `yaml:"object,omitempty"`
}

// Expect checks a step's outcome. Only the fields set are checked.
type Expect struct {
	Count   *int     `yaml:"count,omitempty"`
	Value   *bool    `yaml:"value,omitempty"`
	Triples []string `yaml:"triples,omitempty"`
	Error   string   `yaml:"error,omitempty"` // substring of the error
}

// Assertion checks the final state of a scenario.
type Assertion struct {
	Type      string `yaml:"type"`
	Triple    string `yaml:"triple,omitempty"`
	Count     int    `yaml:"count,omitempty"`
	Op        string `yaml:"op,omitempty"`
	Sizes     []int  `yaml:"sizes,omitempty"`
	Direction string `yaml:"direction,omitempty"`
	Term      string `yaml:"term,omitempty"`
	Value     bool   `yaml:"value,omitempty"`
}

// Operations.
const (
	OpInsert       = "insert"
	OpDelete       = "delete"
	OpLoad         = "load"
	OpQuery        = "query"
	OpCount        = "count"
	OpEmpty        = "empty"
	OpHas          = "has"
	OpHasSubject   = "has_subject"
	OpHasPredicate = "has_predicate"
	OpHasObject    = "has_object"
	OpClear        = "clear"
	OpAudit        = "audit"
)

// Assertion types.
const (
	AssertContains    = "contains"
	AssertNotContains = "not_contains"
	AssertCount       = "count"
	AssertStoreCalls  = "store_calls"
	AssertBatchSizes  = "batch_sizes"
	AssertMembership  = "membership"
)

var tripleOps = []string{OpInsert, OpDelete, OpHas}
var termOps = []string{OpHasSubject, OpHasPredicate, OpHasObject}
var plainOps = []string{OpCount, OpEmpty, OpClear, OpAudit}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown backend %q (want memory or sqlite)", s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	for _, d := range s.Config.Directions {
		if _, err := index.ParseDirection(d); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Op == "":
		return fmt.Errorf("op is required")
	case slices.Contains(tripleOps, step.Op):
		if step.Triple == "" {
			return fmt.Errorf("triple is required for %s", step.Op)
		}
	case slices.Contains(termOps, step.Op):
		if step.Term == "" {
			return fmt.Errorf("term is required for %s", step.Op)
		}
	case step.Op == OpLoad:
		if step.NTriples == "" {
			return fmt.Errorf("ntriples is required for load")
		}
	case step.Op == OpQuery, slices.Contains(plainOps, step.Op):
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertContains, AssertNotContains:
		if a.Triple == "" {
			return fmt.Errorf("triple is required for %s", a.Type)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertStoreCalls:
		if a.Op == "" {
			return fmt.Errorf("op is required for store_calls")
		}
	case AssertBatchSizes:
	case AssertMembership:
		if _, err := index.ParseDirection(a.Direction); err != nil {
			return err
		}
		if a.Term == "" {
			return fmt.Errorf("term is required for membership")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
