package delivery

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestAgeString(t *testing.T) {
	now := time.Date(2026, 5, 10, 18, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		ago time.Duration
		exp string
	}{
		"just now": {
			ago: 0,
			exp: "0 s ago",
		},
		"seconds": {
			ago: 42*time.Second + 900*time.Millisecond,
			exp: "42 s ago",
		},
		"exactly a minute": {
			ago: time.Minute,
			exp: "60 s ago",
		},
		"minutes": {
			ago: 5*time.Minute + 30*time.Second,
			exp: "5 min. ago",
		},
		"exactly two hours": {
			ago: 2 * time.Hour,
			exp: "120 min. ago",
		},
		"hours": {
			ago: 26*time.Hour + 59*time.Minute,
			exp: "26 h ago",
		},
		"exactly two days": {
			ago: 48 * time.Hour,
			exp: "48 h ago",
		},
		"older than two days": {
			ago: 72*time.Hour + 15*time.Minute,
			exp: "at 05-07T18:15",
		},
		"future timestamp": {
			ago: -time.Minute,
			exp: "0 s ago",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "age", AgeString(now, now.Add(-tt.ago)), tt.exp)
		})
	}
}
