package presence

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestClassifier_Classify(t *testing.T) {
	tests := map[string]struct {
		prefix string
		name   string
		exp    Classification
	}{
		"regular player": {
			name: "alice",
			exp:  RealUser,
		},
		"default guest": {
			name: "guest42",
			exp:  GuestUser,
		},
		"guest prefix only": {
			name: "guest",
			exp:  GuestUser,
		},
		"prefix in middle": {
			name: "myguest",
			exp:  RealUser,
		},
		"case sensitive": {
			name: "Guest42",
			exp:  RealUser,
		},
		"custom prefix": {
			prefix: "anon-",
			name:   "anon-7",
			exp:    GuestUser,
		},
		"custom prefix ignores default": {
			prefix: "anon-",
			name:   "guest42",
			exp:    RealUser,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewClassifier(tt.prefix)
			testutil.AssertEqual(t, "classification", c.Classify(tt.name), tt.exp)
		})
	}
}

func TestClassification_String(t *testing.T) {
	testutil.AssertEqual(t, "real", RealUser.String(), "real")
	testutil.AssertEqual(t, "guest", GuestUser.String(), "guest")
	testutil.AssertEqual(t, "unknown", Classification(9).String(), "unknown")
}

func TestTracker_JoinLeave(t *testing.T) {
	tr := NewTracker()

	tr.Join("1", "alice")
	tr.Join("2", "bob")
	testutil.AssertEqual(t, "alice online", tr.IsOnline("alice"), true)
	testutil.AssertEqual(t, "carol online", tr.IsOnline("carol"), false)
	testutil.AssertEqual(t, "count", tr.Count(), 2)

	name, ok := tr.Leave("1")
	testutil.AssertEqual(t, "left ok", ok, true)
	testutil.AssertEqual(t, "left name", name, "alice")
	testutil.AssertEqual(t, "alice offline", tr.IsOnline("alice"), false)

	name, ok = tr.Leave("1")
	testutil.AssertEqual(t, "second leave ok", ok, false)
	testutil.AssertEqual(t, "second leave name", name, "")

	_, ok = tr.Leave("unknown")
	testutil.AssertEqual(t, "unknown session", ok, false)
}

func TestTracker_JoinOverwritesStaleSession(t *testing.T) {
	tr := NewTracker()

	tr.Join("7", "alice")
	tr.Join("7", "bob")

	testutil.AssertEqual(t, "alice online", tr.IsOnline("alice"), false)
	testutil.AssertEqual(t, "bob online", tr.IsOnline("bob"), true)
	testutil.AssertEqual(t, "count", tr.Count(), 1)
}

func TestTracker_MultipleSessions(t *testing.T) {
	tr := NewTracker()

	tr.Join("1", "alice")
	tr.Join("2", "alice")
	tr.Join("3", "carol")
	tr.Leave("1")

	testutil.AssertEqual(t, "alice still online", tr.IsOnline("alice"), true)
	testutil.AssertEqual(t, "online", tr.Online(), []string{"alice", "carol"})

	tr.Reset()
	testutil.AssertEqual(t, "online after reset", tr.Online(), []string{})
	testutil.AssertEqual(t, "count after reset", tr.Count(), 0)
}
