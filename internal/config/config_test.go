package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"sqlite:widetriple.db"}, cfg.Servers)
	assert.Equal(t, "RDF", cfg.Keyspace)
	assert.Equal(t, "RDF", cfg.ColumnFamily)
	assert.Equal(t, "one", cfg.Consistency)
	assert.Equal(t, 100, cfg.SliceSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Empty(t, cfg.Index.Directions)
	assert.Equal(t, "RDFPredicateIndex", cfg.Index.PredicateFamily)
	assert.Equal(t, "RDFObjectIndex", cfg.Index.ObjectFamily)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
servers: ["memory:", "sqlite:/tmp/x.db"]
consistency: quorum
slice_size: 7
index:
  directions: [ps, op]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"memory:", "sqlite:/tmp/x.db"}, cfg.Servers)
	assert.Equal(t, "quorum", cfg.Consistency)
	assert.Equal(t, 7, cfg.SliceSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, []string{"ps", "op"}, cfg.Index.Directions)
	assert.Equal(t, "RDFObjectIndex", cfg.Index.ObjectFamily)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown key", "colum_family: X\n", "yaml"},
		{"bad consistency", "consistency: sometimes\n", "consistency"},
		{"write-only consistency", "consistency: any\n", "consistency"},
		{"zero slice size", "slice_size: 0\n", "slice_size"},
		{"no servers", "servers: []\n", "servers"},
		{"bad server scheme", "servers: [\"thrift://localhost:9160\"]\n", "servers"},
		{"bad direction", "index:\n  directions: [sp]\n", "index.directions"},
		{"bad family name", "column_family: \"has space\"\n", "column_family"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.True(t, strings.HasPrefix(ce.Field, tt.field), "field %q", ce.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widetriple.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keyspace: Test\nmonitored_families: [Legacy, RDF]\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Test", cfg.Keyspace)
	assert.Equal(t, []string{"RDF", "Legacy"}, cfg.PrimaryFamilies())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
