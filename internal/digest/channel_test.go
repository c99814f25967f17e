package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

func openTestChannel(t *testing.T) *Channel {
	t.Helper()
	ch, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func generated(id string, passed bool, digest string) testresult.Outcome {
	return testresult.Outcome{ID: id, Type: testresult.TypeGeneratedRegression, Passed: passed, ValueDigest: digest}
}

func TestPublishAndGet(t *testing.T) {
	ch := openTestChannel(t)
	slot := Slot{OptimizationID: "fn", Iteration: 1}

	require.NoError(t, ch.Publish(slot, testresult.New(
		generated("a", true, "d1"),
		generated("b", false, "d2"),
	)))

	rs, err := ch.Get(slot)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	b, _ := rs.GetByID("b")
	assert.Equal(t, "d2", b.ValueDigest)
	assert.False(t, b.Passed)
}

func TestSlotsAreIsolated(t *testing.T) {
	ch := openTestChannel(t)
	ref := Slot{OptimizationID: "fn", Iteration: ReferenceIteration}
	cand := Slot{OptimizationID: "fn", Iteration: 1}
	other := Slot{OptimizationID: "fn2", Iteration: 1}

	require.NoError(t, ch.Publish(ref, testresult.New(generated("a", true, "ref"))))
	require.NoError(t, ch.Publish(cand, testresult.New(generated("a", true, "cand"))))
	require.NoError(t, ch.Publish(other, testresult.New(generated("z", true, "x"))))

	require.NoError(t, ch.Reset(cand))

	rs, err := ch.Get(cand)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())

	rs, err = ch.Get(ref)
	require.NoError(t, err)
	a, _ := rs.GetByID("a")
	assert.Equal(t, "ref", a.ValueDigest)

	rs, err = ch.Get(other)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestResetEmptySlot(t *testing.T) {
	ch := openTestChannel(t)
	assert.NoError(t, ch.Reset(Slot{OptimizationID: "none", Iteration: 9}))
}

func TestClosedChannel(t *testing.T) {
	ch, err := Open(Config{})
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	assert.ErrorIs(t, ch.Reset(Slot{}), ErrClosed)
	_, err = ch.Get(Slot{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPersistentChannel(t *testing.T) {
	dir := t.TempDir()
	slot := Slot{OptimizationID: "fn", Iteration: 0}

	ch, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, ch.Publish(slot, testresult.New(generated("a", true, "d"))))
	require.NoError(t, ch.Close())

	ch, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer ch.Close()
	rs, err := ch.Get(slot)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestDigestComparator(t *testing.T) {
	ref := testresult.New(generated("a", true, "x"), generated("b", false, "y"))

	tests := []struct {
		name      string
		candidate *testresult.ResultSet
		want      bool
	}{
		{"identical", testresult.New(generated("a", true, "x"), generated("b", false, "y")), true},
		{"extra outcomes ignored", testresult.New(generated("a", true, "x"), generated("b", false, "y"), generated("c", true, "z")), true},
		{"missing outcome", testresult.New(generated("a", true, "x")), false},
		{"status changed", testresult.New(generated("a", true, "x"), generated("b", true, "y")), false},
		{"digest changed", testresult.New(generated("a", true, "other"), generated("b", false, "y")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := DigestComparator{}.Equivalent(ref, tt.candidate)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
