package utils

import (
	"os"
	"testing"
)

// LoadEnv returns the value of key, or skips t when it is unset or empty. Tests against real Google Cloud resources are gated by TEST_* variables.
func LoadEnv(t testing.TB, key string) string {
	t.Helper()

	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("%s is not set, skipping test against Google Cloud", key)
	}
	return v
}
