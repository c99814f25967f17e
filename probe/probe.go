// Package probe is imported by instrumented tests to report per-test
// runtimes and value digests back to llm-optimizer.
//
//	func TestSumRegression(t *testing.T) {
//		probe.Measure(t, "sum/small", func() any { return sorting.Sum([]int{1, 2, 3}) })
//	}
//
// Outside an optimizer run the result file variable is unset and Measure
// only runs the function.
package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

const (
	// EnvResultFile names the file records are appended to.
	EnvResultFile = "LLM_OPTIMIZER_RESULT_FILE"
	// EnvIteration holds the trial iteration; 0 is the original code.
	EnvIteration = "LLM_OPTIMIZER_TEST_ITERATION"
)

// Result is one line of the result file.
type Result struct {
	ID        string `json:"id"`
	Passed    bool   `json:"passed"`
	RuntimeNS *int64 `json:"runtime_ns,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

var mu sync.Mutex

// Append writes r as one JSON line to path.
func Append(path string, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", r.ID, err)
	}
	data = append(data, '\n')

	mu.Lock()
	defer mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open result file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	return f.Close()
}

// Digest fingerprints a value by its JSON encoding, falling back to its Go
// syntax representation for values JSON cannot encode.
func Digest(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Measure runs fn, times it and records the digest of its return value
// under id. The pass status is taken from tb when the test finishes.
func Measure(tb testing.TB, id string, fn func() any) any {
	tb.Helper()

	start := time.Now()
	v := fn()
	elapsed := time.Since(start).Nanoseconds()

	path := os.Getenv(EnvResultFile)
	if path == "" {
		return v
	}

	rec := Result{ID: id, RuntimeNS: &elapsed, Digest: Digest(v)}
	tb.Cleanup(func() {
		rec.Passed = !tb.Failed()
		if err := Append(path, rec); err != nil {
			tb.Errorf("probe: %v", err)
		}
	})
	return v
}
