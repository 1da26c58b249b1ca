package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pixil98/go-mailbot/internal/storage"
)

const (
	messagesKey = "messages"
	playersKey  = "players"
)

// PersistObserver is notified of every persistence attempt.
type PersistObserver interface {
	ObservePersist(err error)
}

// Store holds every recipient log and player record. Logs are append only and
// cursors never move backwards. Every mutation is followed by a full snapshot
// write of both maps.
type Store struct {
	mu      sync.RWMutex
	logs    map[string][]Message
	players map[string]*Player

	messages *storage.Snapshot[map[string][]Message]
	records  *storage.Snapshot[map[string]*Player]

	// persistMu keeps snapshot writes in the order their state was taken.
	persistMu sync.Mutex
	// dirty is set when the last persist failed; Tick retries it.
	dirty    bool
	now      func() time.Time
	observer PersistObserver
}

type StoreOpt func(*Store)

// WithClock replaces the clock used to stamp messages.
func WithClock(now func() time.Time) StoreOpt {
	return func(s *Store) {
		s.now = now
	}
}

// WithPersistObserver registers an observer for persistence results.
func WithPersistObserver(o PersistObserver) StoreOpt {
	return func(s *Store) {
		s.observer = o
	}
}

func NewStore(b storage.Backend, opts ...StoreOpt) *Store {
	s := &Store{
		logs:     map[string][]Message{},
		players:  map[string]*Player{},
		messages: storage.NewSnapshot[map[string][]Message](b, messagesKey),
		records:  storage.NewSnapshot[map[string]*Player](b, playersKey),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load replaces the in-memory state with the stored snapshots. A missing or
// unreadable snapshot leaves that half of the store empty; it is never fatal.
func (s *Store) Load(ctx context.Context) {
	logs := loadSnapshot(ctx, s.messages)
	players := loadSnapshot(ctx, s.records)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = map[string][]Message{}
	for to, log := range logs {
		s.logs[to] = log
	}
	s.players = map[string]*Player{}
	for name, p := range players {
		if p == nil {
			p = &Player{}
		}
		s.players[name] = p
	}
	s.clampCursors()

	slog.InfoContext(ctx, "mailbox loaded", "recipients", len(s.logs), "players", len(s.players))
}

func loadSnapshot[T any](ctx context.Context, snap *storage.Snapshot[T]) T {
	v, err := snap.Load(ctx)
	if err == nil {
		return v
	}

	var zero T
	if errors.Is(err, storage.ErrNotFound) {
		slog.InfoContext(ctx, "no snapshot found, starting empty", "snapshot", snap.Key())
		return zero
	}
	slog.WarnContext(ctx, "loading snapshot failed, starting empty", "snapshot", snap.Key(), "error", err)
	return zero
}

// clampCursors repairs snapshots where a cursor points past its log, which can
// happen when the two snapshots were written by different runs.
func (s *Store) clampCursors() {
	public := len(s.logs[BroadcastRecipient])
	for name, p := range s.players {
		p.LastRead = clamp(p.LastRead, len(s.logs[name]))
		p.LastPublic = clamp(p.LastPublic, public)
	}
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// AppendMessage adds a message to the recipient's log and returns its 1-based
// sequence number.
func (s *Store) AppendMessage(ctx context.Context, to, from, text string) int {
	s.mu.Lock()
	s.logs[to] = append(s.logs[to], Message{
		From: from,
		Time: s.now().UnixMilli(),
		Text: text,
	})
	n := len(s.logs[to])
	s.mu.Unlock()

	s.persist(ctx)
	return n
}

// Log returns a copy of the recipient's log, creating an empty log if needed.
func (s *Store) Log(recipient string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.ensureLog(recipient))
}

func (s *Store) ensureLog(recipient string) []Message {
	log, ok := s.logs[recipient]
	if !ok {
		log = []Message{}
		s.logs[recipient] = log
	}
	return log
}

func (s *Store) ensurePlayer(name string) *Player {
	p, ok := s.players[name]
	if !ok {
		p = &Player{}
		s.players[name] = p
	}
	return p
}

// Player returns a copy of the player's record, creating the record if needed.
func (s *Store) Player(name string) Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensurePlayer(name).clone()
}

// KnownPlayer returns the player's record without creating one.
func (s *Store) KnownPlayer(name string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[name]
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

// UpdatePlayer applies fn to the shared record for name and persists. Cursor
// changes made by fn are clamped so they never move backwards or past the
// end of their log.
func (s *Store) UpdatePlayer(ctx context.Context, name string, fn func(*Player)) {
	s.mu.Lock()
	p := s.ensurePlayer(name)
	lastRead, lastPublic := p.LastRead, p.LastPublic
	fn(p)
	p.LastRead = clamp(max(p.LastRead, lastRead), len(s.logs[name]))
	p.LastPublic = clamp(max(p.LastPublic, lastPublic), len(s.logs[BroadcastRecipient]))
	s.mu.Unlock()

	s.persist(ctx)
}

// Unread returns the private and public tails beyond the player's cursors.
// It never creates records; an unknown player has read nothing.
func (s *Store) Unread(name string) Unread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastRead, lastPublic int
	if p, ok := s.players[name]; ok {
		lastRead, lastPublic = p.LastRead, p.LastPublic
	}
	private := s.logs[name]
	public := s.logs[BroadcastRecipient]

	return Unread{
		Private:    slices.Clone(private[clamp(lastRead, len(private)):]),
		Public:     slices.Clone(public[clamp(lastPublic, len(public)):]),
		PrivateLen: len(private),
		PublicLen:  len(public),
	}
}

// Counts returns how many private and public messages the player has not read.
func (s *Store) Counts(name string) Counts {
	u := s.Unread(name)
	return Counts{Private: len(u.Private), Public: len(u.Public)}
}

// Advance moves the player's cursors forward to the given log positions.
func (s *Store) Advance(ctx context.Context, name string, private, public int) {
	s.UpdatePlayer(ctx, name, func(p *Player) {
		p.LastRead = private
		p.LastPublic = public
	})
}

// Recipients returns every recipient with a log and the log's length.
func (s *Store) Recipients() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.logs))
	for to, log := range s.logs {
		out[to] = len(log)
	}
	return out
}

// Players returns a copy of every known player record.
func (s *Store) Players() map[string]Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Player, len(s.players))
	for name, p := range s.players {
		out[name] = p.clone()
	}
	return out
}

// Persist writes both snapshots.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	logs := make(map[string][]Message, len(s.logs))
	for to, log := range s.logs {
		logs[to] = slices.Clone(log)
	}
	players := make(map[string]*Player, len(s.players))
	for name, p := range s.players {
		c := p.clone()
		players[name] = &c
	}
	s.mu.RUnlock()

	err := errors.Join(s.messages.Save(ctx, logs), s.records.Save(ctx, players))

	s.mu.Lock()
	s.dirty = err != nil
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObservePersist(err)
	}

	return err
}

func (s *Store) persist(ctx context.Context) {
	if err := s.Persist(ctx); err != nil {
		slog.ErrorContext(ctx, "persisting mailbox", "error", err)
	}
}

// Tick retries the last persist if it failed.
func (s *Store) Tick(ctx context.Context) error {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()

	if dirty {
		slog.InfoContext(ctx, "retrying failed mailbox persist")
		s.persist(ctx)
	}
	return nil
}

// Close flushes state left unsaved by a failed persist.
func (s *Store) Close() error {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()

	if !dirty {
		return nil
	}
	return s.Persist(context.Background())
}
