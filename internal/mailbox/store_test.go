package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-mailbot/internal/storage"
	"github.com/pixil98/go-testutil"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("unexpected error creating backend: %v", err)
	}
	return NewStore(b, WithClock(func() time.Time { return testNow })), dir
}

type failingBackend struct {
	fail bool
	data map[string][]byte
}

func (b *failingBackend) Read(_ context.Context, key string) ([]byte, error) {
	d, ok := b.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (b *failingBackend) Write(_ context.Context, key string, data []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	if b.data == nil {
		b.data = map[string][]byte{}
	}
	b.data[key] = data
	return nil
}

func (b *failingBackend) Close() error { return nil }

type countingObserver struct {
	ok, failed int
}

func (o *countingObserver) ObservePersist(err error) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func TestStore_AppendMessage(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	testutil.AssertEqual(t, "first index", s.AppendMessage(ctx, "alice", "bob", "@alice hello"), 1)
	testutil.AssertEqual(t, "second index", s.AppendMessage(ctx, "alice", "carol", "@alice hi"), 2)
	testutil.AssertEqual(t, "other recipient", s.AppendMessage(ctx, "bob", "alice", "@bob yo"), 1)

	log := s.Log("alice")
	testutil.AssertEqual(t, "log", log, []Message{
		{From: "bob", Time: testNow.UnixMilli(), Text: "@alice hello"},
		{From: "carol", Time: testNow.UnixMilli(), Text: "@alice hi"},
	})

	// Appending persists immediately
	data, err := os.ReadFile(filepath.Join(dir, "messages.json"))
	if err != nil {
		t.Fatalf("expected messages snapshot: %v", err)
	}
	var stored map[string][]Message
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshalling snapshot: %v", err)
	}
	testutil.AssertEqual(t, "stored alice", len(stored["alice"]), 2)
	testutil.AssertEqual(t, "stored bob", len(stored["bob"]), 1)
}

func TestStore_Log_CreatesEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	log := s.Log("nobody")
	testutil.AssertEqual(t, "length", len(log), 0)

	_, ok := s.Recipients()["nobody"]
	testutil.AssertEqual(t, "recipient created", ok, true)
}

func TestStore_Log_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.AppendMessage(ctx, "alice", "bob", "@alice one")

	log := s.Log("alice")
	log[0].Text = "tampered"

	testutil.AssertEqual(t, "text", s.Log("alice")[0].Text, "@alice one")
}

func TestStore_Player(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, ok := s.KnownPlayer("dave")
	testutil.AssertEqual(t, "known before", ok, false)

	p := s.Player("dave")
	testutil.AssertEqual(t, "new record", p, Player{})

	_, ok = s.KnownPlayer("dave")
	testutil.AssertEqual(t, "known after", ok, true)

	s.UpdatePlayer(ctx, "dave", func(p *Player) {
		p.HadIntro = true
	})
	testutil.AssertEqual(t, "intro visible", s.Player("dave").HadIntro, true)
}

func TestStore_Unread(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		private    int
		public     int
		lastRead   int
		lastPublic int
		expPrivate int
		expPublic  int
		expEmpty   bool
	}{
		"no logs": {
			expEmpty: true,
		},
		"all unread": {
			private:    2,
			public:     3,
			expPrivate: 2,
			expPublic:  3,
		},
		"partially read": {
			private:    4,
			public:     3,
			lastRead:   3,
			lastPublic: 1,
			expPrivate: 1,
			expPublic:  2,
		},
		"all read": {
			private:    2,
			public:     1,
			lastRead:   2,
			lastPublic: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStore(t)
			for i := 0; i < tt.private; i++ {
				s.AppendMessage(ctx, "erin", "bob", "@erin hi")
			}
			for i := 0; i < tt.public; i++ {
				s.AppendMessage(ctx, BroadcastRecipient, "bob", "@@ hi all")
			}
			s.Advance(ctx, "erin", tt.lastRead, tt.lastPublic)

			u := s.Unread("erin")
			testutil.AssertEqual(t, "private", len(u.Private), tt.expPrivate)
			testutil.AssertEqual(t, "public", len(u.Public), tt.expPublic)
			testutil.AssertEqual(t, "private len", u.PrivateLen, tt.private)
			testutil.AssertEqual(t, "public len", u.PublicLen, tt.public)
			testutil.AssertEqual(t, "empty", u.Empty(), tt.expEmpty)
			testutil.AssertEqual(t, "messages", len(u.Messages()), tt.expPrivate+tt.expPublic)
			testutil.AssertEqual(t, "counts", s.Counts("erin"), Counts{Private: tt.expPrivate, Public: tt.expPublic})
		})
	}
}

func TestStore_Unread_PrivateBeforePublic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.AppendMessage(ctx, BroadcastRecipient, "carol", "@@ public first")
	s.AppendMessage(ctx, "frank", "bob", "@frank private second")

	msgs := s.Unread("frank").Messages()
	testutil.AssertEqual(t, "count", len(msgs), 2)
	testutil.AssertEqual(t, "first", msgs[0].Text, "@frank private second")
	testutil.AssertEqual(t, "second", msgs[1].Text, "@@ public first")
}

func TestStore_BroadcastVisibleToEveryone(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.AppendMessage(ctx, BroadcastRecipient, "bob", "@@ server restart at noon")

	for _, name := range []string{"alice", "carol", "dave"} {
		u := s.Unread(name)
		testutil.AssertEqual(t, name+" public", len(u.Public), 1)
		testutil.AssertEqual(t, name+" text", u.Public[0].Text, "@@ server restart at noon")
	}

	// Reading as one player does not consume it for another
	s.Advance(ctx, "alice", 0, 1)
	testutil.AssertEqual(t, "alice", s.Counts("alice").Public, 0)
	testutil.AssertEqual(t, "carol", s.Counts("carol").Public, 1)
}

func TestStore_Advance_Monotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.AppendMessage(ctx, "gina", "bob", "@gina hi")
		s.AppendMessage(ctx, BroadcastRecipient, "bob", "@@ hi")
	}

	steps := []struct {
		private, public       int
		expPrivate, expPublic int
	}{
		{private: 2, public: 1, expPrivate: 2, expPublic: 1},
		{private: 1, public: 0, expPrivate: 2, expPublic: 1},   // never backwards
		{private: 10, public: 10, expPrivate: 3, expPublic: 3}, // never past the log
		{private: -5, public: 2, expPrivate: 3, expPublic: 3},
	}

	for i, step := range steps {
		s.Advance(ctx, "gina", step.private, step.public)
		p := s.Player("gina")
		if p.LastRead != step.expPrivate || p.LastPublic != step.expPublic {
			t.Errorf("step %d: cursors = (%d, %d), expected (%d, %d)", i, p.LastRead, p.LastPublic, step.expPrivate, step.expPublic)
		}
	}
}

func TestStore_PersistAndLoad(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	s.AppendMessage(ctx, "alice", "bob", "@alice hello")
	s.AppendMessage(ctx, BroadcastRecipient, "bob", "@@ hi all")
	s.Advance(ctx, "alice", 1, 0)
	left := testNow.Add(-time.Hour).UnixMilli()
	s.UpdatePlayer(ctx, "bob", func(p *Player) {
		p.LastLeave = &left
		p.HadIntro = true
	})

	b, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("unexpected error creating backend: %v", err)
	}
	reloaded := NewStore(b)
	reloaded.Load(ctx)

	testutil.AssertEqual(t, "alice log", reloaded.Log("alice"), s.Log("alice"))
	testutil.AssertEqual(t, "public log", reloaded.Log(BroadcastRecipient), s.Log(BroadcastRecipient))
	testutil.AssertEqual(t, "alice cursor", reloaded.Player("alice").LastRead, 1)

	bob := reloaded.Player("bob")
	testutil.AssertEqual(t, "bob intro", bob.HadIntro, true)
	leftAt, ok := bob.LeftAt()
	testutil.AssertEqual(t, "bob left", ok, true)
	testutil.AssertEqual(t, "bob left at", leftAt.UnixMilli(), left)
}

func TestStore_Load_OriginalFormat(t *testing.T) {
	dir := t.TempDir()
	messages := `{"alice":[{"from":"bob","time":1400000000000,"msg":"@alice hi"}],"@":[]}`
	players := `{"alice":{"lastRead":1},"bob":{"lastLeave":1400000000000,"hadIntro":true},"carol":{}}`
	if err := os.WriteFile(filepath.Join(dir, "messages.json"), []byte(messages), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "players.json"), []byte(players), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	b, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("unexpected error creating backend: %v", err)
	}

	s := NewStore(b)
	s.Load(context.Background())

	testutil.AssertEqual(t, "alice log", s.Log("alice"), []Message{{From: "bob", Time: 1400000000000, Text: "@alice hi"}})
	testutil.AssertEqual(t, "alice unread", s.Counts("alice"), Counts{})
	testutil.AssertEqual(t, "player count", len(s.Players()), 3)
	_, ok := s.Player("carol").LeftAt()
	testutil.AssertEqual(t, "carol never left", ok, false)
}

func TestStore_Load_Fallback(t *testing.T) {
	tests := map[string]struct {
		messages *string
		players  *string
		expLogs  int
		expUsers int
	}{
		"missing snapshots": {},
		"corrupt messages": {
			messages: ptr(`{not json`),
			players:  ptr(`{"alice":{}}`),
			expUsers: 1,
		},
		"corrupt players": {
			messages: ptr(`{"alice":[]}`),
			players:  ptr(`[]`),
			expLogs:  1,
		},
		"null player record": {
			players:  ptr(`{"alice":null}`),
			expUsers: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.messages != nil {
				if err := os.WriteFile(filepath.Join(dir, "messages.json"), []byte(*tt.messages), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}
			if tt.players != nil {
				if err := os.WriteFile(filepath.Join(dir, "players.json"), []byte(*tt.players), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}
			b, err := storage.NewFileBackend(dir)
			if err != nil {
				t.Fatalf("unexpected error creating backend: %v", err)
			}

			s := NewStore(b)
			s.Load(context.Background())

			testutil.AssertEqual(t, "logs", len(s.Recipients()), tt.expLogs)
			testutil.AssertEqual(t, "players", len(s.Players()), tt.expUsers)
		})
	}
}

func TestStore_Load_LogsSnapshotKey(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	b := &failingBackend{data: map[string][]byte{"players": []byte(`{not json`)}}
	NewStore(b).Load(context.Background())

	out := buf.String()
	for _, exp := range []string{
		`msg="no snapshot found, starting empty" snapshot=messages`,
		`msg="loading snapshot failed, starting empty" snapshot=players`,
	} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected log output to contain %q, got:\n%s", exp, out)
		}
	}
}

func TestStore_Load_ClampsCursors(t *testing.T) {
	b := &failingBackend{data: map[string][]byte{
		"messages": []byte(`{"alice":[{"from":"bob","time":1,"msg":"x"}]}`),
		"players":  []byte(`{"alice":{"lastRead":5,"lastPublic":2}}`),
	}}

	s := NewStore(b)
	s.Load(context.Background())

	p := s.Player("alice")
	testutil.AssertEqual(t, "last read", p.LastRead, 1)
	testutil.AssertEqual(t, "last public", p.LastPublic, 0)
}

func TestStore_Tick_RetriesFailedPersist(t *testing.T) {
	b := &failingBackend{fail: true}
	obs := &countingObserver{}
	s := NewStore(b, WithPersistObserver(obs))
	ctx := context.Background()

	s.AppendMessage(ctx, "alice", "bob", "@alice hello")
	testutil.AssertEqual(t, "failed", obs.failed, 1)
	testutil.AssertEqual(t, "written", len(b.data), 0)

	b.fail = false
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ok", obs.ok, 1)
	testutil.AssertEqual(t, "written", len(b.data), 2)

	// Clean store does not rewrite
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ok after clean tick", obs.ok, 1)
}

func TestStore_Close_FlushesDirty(t *testing.T) {
	b := &failingBackend{fail: true}
	obs := &countingObserver{}
	s := NewStore(b, WithPersistObserver(obs))

	s.AppendMessage(context.Background(), "alice", "bob", "@alice hello")
	b.fail = false

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "written", len(b.data), 2)

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ok", obs.ok, 1)
}

func ptr(s string) *string {
	return &s
}
