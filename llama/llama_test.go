package llama

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamalink/llamalink/dl"
)

func TestRequireMissingSymbol(t *testing.T) {
	symErr := &SymbolError{
		Symbol:  "llama_decode",
		Library: "/lib/libllama.so",
		Err:     dl.ErrSymbolNotFound,
	}
	b := &binder{missing: map[string]*SymbolError{"llama_decode": symErr}}

	assert.NoError(t, b.require("llama_tokenize"))

	err := b.require("llama_tokenize", "llama_decode")
	require.Error(t, err)

	var se *SymbolError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "llama_decode", se.Symbol)
	assert.ErrorIs(t, err, dl.ErrSymbolNotFound, "symbol errors stay distinguishable from load errors")
	assert.Contains(t, err.Error(), "llama_decode")
	assert.Contains(t, err.Error(), "/lib/libllama.so")
}

func TestInitSingleSharedOutcome(t *testing.T) {
	var calls atomic.Int32
	sentinel := errors.New("no backend variants available to load")

	prev := loadBackend
	loadBackend = func() (*binder, error) {
		calls.Add(1)
		return nil, sentinel
	}
	t.Cleanup(func() { loadBackend = prev })

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = Init()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent first callers share one initialization")
	for _, err := range errs {
		assert.Same(t, sentinel, err, "every caller observes the identical outcome")
	}

	// Later accesses reproduce the same fatal condition without
	// re-running the load.
	_, err := BackendVariant()
	assert.Same(t, sentinel, err)
	assert.EqualValues(t, 1, calls.Load())
}
