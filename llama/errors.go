package llama

import "fmt"

// A SymbolError reports an entry point absent from the loaded backend
// libraries. It signals an ABI or packaging mismatch between this binary
// and the shipped variant, not a runtime condition, and fails only the
// call paths needing that symbol.
type SymbolError struct {
	Symbol  string
	Library string
	Err     error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("backend entry point %q missing from %s (incompatible library build)", e.Symbol, e.Library)
}

func (e *SymbolError) Unwrap() error { return e.Err }
