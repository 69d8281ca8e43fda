// Package config loads widetriple configuration.
//
// A YAML file is decoded over the defaults, then the result is validated
// against an embedded CUE schema. Unknown YAML keys are rejected.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Servers           []string `yaml:"servers" json:"servers"`
	Keyspace          string   `yaml:"keyspace" json:"keyspace"`
	ColumnFamily      string   `yaml:"column_family" json:"column_family"`
	MonitoredFamilies []string `yaml:"monitored_families" json:"monitored_families"`
	Consistency       string   `yaml:"consistency" json:"consistency"`
	SliceSize         int      `yaml:"slice_size" json:"slice_size"`
	BatchSize         int      `yaml:"batch_size" json:"batch_size"`
	Index             Index    `yaml:"index" json:"index"`
}

// Index configures the secondary indexes.
type Index struct {
	Directions      []string `yaml:"directions" json:"directions"`
	PredicateFamily string   `yaml:"predicate_family" json:"predicate_family"`
	ObjectFamily    string   `yaml:"object_family" json:"object_family"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Servers:           []string{"sqlite:widetriple.db"},
		Keyspace:          "RDF",
		ColumnFamily:      "RDF",
		MonitoredFamilies: []string{},
		Consistency:       "one",
		SliceSize:         100,
		BatchSize:         100,
		Index: Index{
			Directions:      []string{},
			PredicateFamily: "RDFPredicateIndex",
			ObjectFamily:    "RDFObjectIndex",
		},
	}
}

// PrimaryFamilies returns the write family followed by any extra
// monitored families, without duplicates.
func (c Config) PrimaryFamilies() []string {
	out := []string{c.ColumnFamily}
	for _, f := range c.MonitoredFamilies {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads path and returns the validated configuration. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Field: "yaml", Message: err.Error()}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize turns nulls from YAML into empty lists so they validate.
func (c *Config) normalize() {
	if c.MonitoredFamilies == nil {
		c.MonitoredFamilies = []string{}
	}
	if c.Index.Directions == nil {
		c.Index.Directions = []string{}
	}
}

// Validate checks c against the CUE schema.
func (c Config) Validate() error {
	c.normalize()

	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := cctx.Encode(c)
	if err := val.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first error, with the
// failing field path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	ce := &ConfigError{Field: field, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
