package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llamalink/llamalink/logutil"
)

func TestVar(t *testing.T) {
	cases := map[string]string{
		"value":       "value",
		" value ":     "value",
		`"quoted"`:    "quoted",
		`'quoted'`:    "quoted",
		`  "spaced" `: "spaced",
		"":            "",
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			t.Setenv("LLAMALINK_TEST_VAR", input)
			assert.Equal(t, want, Var("LLAMALINK_TEST_VAR"))
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"0":     slog.LevelInfo,
		"false": slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     logutil.LevelTrace,
		"5":     logutil.LevelTrace,
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			t.Setenv("LLAMALINK_DEBUG", input)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestForceCPU(t *testing.T) {
	cases := map[string]bool{
		"":        false,
		"0":       false,
		"false":   false,
		"1":       true,
		"true":    true,
		"garbage": true,
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			t.Setenv("LLAMALINK_FORCE_CPU", input)
			assert.Equal(t, want, ForceCPU())
		})
	}
}

func TestLibrary(t *testing.T) {
	t.Setenv("LLAMALINK_LIBRARY", "cuda_v12.4")
	assert.Equal(t, "cuda_v12.4", Library())
}
