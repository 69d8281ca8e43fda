package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_InOrderThenRepeats(t *testing.T) {
	gen := NewFixedIDGenerator("load-1", "load-2")

	assert.Equal(t, "load-1", gen.Generate())
	assert.Equal(t, "load-2", gen.Generate())
	assert.Equal(t, "load-2", gen.Generate())
}

func TestFixedIDGenerator_Default(t *testing.T) {
	assert.Equal(t, "test-load", NewFixedIDGenerator().Generate())
}

func TestFixedIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedIDGenerator("only")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "only", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
