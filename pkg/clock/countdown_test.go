package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Buckets(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		expired bool
		label   string
	}{
		{"in the past", now.Add(-time.Minute), true, ""},
		{"exactly now", now, true, ""},
		{"seconds only", now.Add(42 * time.Second), false, "42"},
		{"single digit seconds", now.Add(7 * time.Second), false, "07"},
		{"sub second", now.Add(500 * time.Millisecond), false, "00"},
		{"minutes", now.Add(5*time.Minute + 3*time.Second), false, "05:03"},
		{"just under an hour", now.Add(59*time.Minute + 59*time.Second), false, "59:59"},
		{"exactly an hour", now.Add(time.Hour), false, "1 hours 00:00"},
		{"hours", now.Add(26*time.Hour + 15*time.Minute + 9*time.Second), false, "26 hours 15:09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.start, now)
			assert.Equal(t, tt.expired, got.Expired)
			assert.Equal(t, tt.label, got.Label)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	start := now.Add(90*time.Minute + 30*time.Second)

	first := Evaluate(start, now)
	for i := 0; i < 100; i++ {
		// interleave unrelated evaluations; results must not depend on history
		_ = Evaluate(now.Add(time.Duration(i)*time.Second), now)
		assert.Equal(t, first, Evaluate(start, now))
	}
}

func TestParseStart(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	got, err := ParseStart("2026-10-18 20:30:00", tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 18, 11, 30, 0, 0, time.UTC)))

	got, err = ParseStart("2026-10-18T20:30", tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 18, 11, 30, 0, 0, time.UTC)))

	got, err = ParseStart("2026-10-18T20:30:00Z", tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 18, 20, 30, 0, 0, time.UTC)))

	_, err = ParseStart("", tokyo)
	assert.Error(t, err)

	_, err = ParseStart("tomorrow at noon", tokyo)
	assert.Error(t, err)
}

func TestFormatLocal_RoundTrip(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	start := time.Date(2026, 10, 18, 11, 30, 0, 0, time.UTC)
	s := FormatLocal(start, tokyo)
	assert.Equal(t, "2026-10-18 20:30:00", s)

	back, err := ParseStart(s, tokyo)
	require.NoError(t, err)
	assert.True(t, back.Equal(start))
}
