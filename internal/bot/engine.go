package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/pixil98/go-mailbot/internal/delivery"
	"github.com/pixil98/go-mailbot/internal/mailbox"
	"github.com/pixil98/go-mailbot/internal/presence"
	"github.com/pixil98/go-mailbot/internal/transport"
)

// Transport is the part of the game link the engine talks back through.
type Transport interface {
	SendPrivate(ctx context.Context, to, text string) error
	RequestRoster(ctx context.Context) error
}

// Observer is notified of handled commands and stored messages.
type Observer interface {
	ObserveCommand(kind string)
	ObserveStored(kind string)
}

type nopObserver struct{}

func (nopObserver) ObserveCommand(string) {}
func (nopObserver) ObserveStored(string)  {}

type EngineOpt func(*Engine)

// WithClock replaces the clock used for leave stamps and seen ages.
func WithClock(now func() time.Time) EngineOpt {
	return func(e *Engine) {
		e.now = now
	}
}

// WithObserver registers an observer for engine activity.
func WithObserver(o Observer) EngineOpt {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithReplies overrides the default reply texts.
func WithReplies(r Replies) EngineOpt {
	return func(e *Engine) {
		e.replyConfig = r
	}
}

// WithClassifier sets how player names are classified.
func WithClassifier(c presence.Classifier) EngineOpt {
	return func(e *Engine) {
		e.classifier = c
	}
}

// Engine interprets game events against the mailbox and presence state.
// Events must be handed to it one at a time; scheduled deliveries may run
// concurrently with event handling.
type Engine struct {
	store      *mailbox.Store
	tracker    *presence.Tracker
	scheduler  *delivery.Scheduler
	transport  Transport
	classifier presence.Classifier
	observer   Observer
	now        func() time.Time

	replyConfig Replies
	replies     *replies

	mu      sync.Mutex
	name    string
	session string
	intros  map[string]struct{}
}

func NewEngine(name string, store *mailbox.Store, tracker *presence.Tracker, scheduler *delivery.Scheduler, tr Transport, opts ...EngineOpt) (*Engine, error) {
	e := &Engine{
		store:       store,
		tracker:     tracker,
		scheduler:   scheduler,
		transport:   tr,
		classifier:  presence.NewClassifier(presence.DefaultGuestPrefix),
		observer:    nopObserver{},
		now:         time.Now,
		replyConfig: DefaultReplies(),
		name:        name,
		intros:      make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	r, err := e.replyConfig.compile()
	if err != nil {
		return nil, fmt.Errorf("compiling replies: %w", err)
	}
	e.replies = r

	return e, nil
}

// Identity returns the bot's own name and session, if connected.
func (e *Engine) Identity() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name, e.session
}

// HandleEvent dispatches a single transport event.
func (e *Engine) HandleEvent(ctx context.Context, ev transport.Event) error {
	switch ev.Type {
	case transport.EventPrivateMessage:
		return e.HandlePrivateMessage(ctx, ev.ToBot, ev.From, ev.Text)
	case transport.EventPlayerJoin:
		return e.HandleJoin(ctx, ev.Session, ev.Name)
	case transport.EventPlayerLeave:
		return e.HandleLeave(ctx, ev.Session)
	case transport.EventConnected:
		return e.HandleConnect(ctx, ev.Session, ev.Name)
	default:
		return fmt.Errorf("%w: %q", transport.ErrUnknownEvent, ev.Type)
	}
}

// HandlePrivateMessage runs the command in text on behalf of from.
func (e *Engine) HandlePrivateMessage(ctx context.Context, toBot bool, from, text string) error {
	if !toBot {
		return nil
	}

	cmd := Parse(text)
	if cmd.Kind == KindSentinel {
		return nil
	}

	if e.classifier.Classify(from) != presence.RealUser {
		e.observer.ObserveCommand("guest")
		return e.reply(ctx, from, e.replies.guest, ReplyData{})
	}

	e.observer.ObserveCommand(cmd.Kind.String())
	slog.DebugContext(ctx, "handling command", "player", from, "command", cmd.Kind.String())

	switch cmd.Kind {
	case KindList:
		return e.list(ctx, from)
	case KindListAll:
		return e.listAll(ctx, from)
	case KindListPublic:
		return e.listPublic(ctx, from)
	case KindHelp:
		return e.replyAll(ctx, from, e.replies.help, ReplyData{})
	case KindSeen:
		return e.seen(ctx, from, cmd.Target)
	case KindDirect:
		e.store.AppendMessage(ctx, cmd.Target, from, cmd.Raw)
		e.observer.ObserveStored("private")
		return nil
	case KindBroadcast:
		e.store.AppendMessage(ctx, mailbox.BroadcastRecipient, from, cmd.Raw)
		e.observer.ObserveStored("broadcast")
		return nil
	default:
		return e.transport.SendPrivate(ctx, from, Unknown)
	}
}

// list, listAll and listPublic make the reader a known player even when
// there is nothing to show.
func (e *Engine) list(ctx context.Context, name string) error {
	e.store.Player(name)
	u := e.store.Unread(name)
	if u.Empty() {
		return e.reply(ctx, name, e.replies.noMessages, ReplyData{})
	}
	if len(u.Private) == 0 && len(u.Public) == 0 {
		return e.reply(ctx, name, e.replies.noUnread, ReplyData{})
	}

	e.scheduler.ScheduleBatch(name, u.Messages())
	e.store.Advance(ctx, name, u.PrivateLen, u.PublicLen)
	return nil
}

// listAll shows the whole private log. It leaves the read cursor alone so a
// later ls still reports anything that was unread before.
func (e *Engine) listAll(ctx context.Context, name string) error {
	e.store.Player(name)
	msgs := e.store.Log(name)
	if len(msgs) == 0 {
		return e.reply(ctx, name, e.replies.noMessages, ReplyData{})
	}

	e.scheduler.ScheduleBatch(name, msgs)
	return nil
}

func (e *Engine) listPublic(ctx context.Context, name string) error {
	e.store.Player(name)
	msgs := e.store.Log(mailbox.BroadcastRecipient)
	if len(msgs) == 0 {
		return e.reply(ctx, name, e.replies.noPublic, ReplyData{})
	}

	e.scheduler.ScheduleBatch(name, msgs)
	e.store.UpdatePlayer(ctx, name, func(p *mailbox.Player) {
		p.LastPublic = len(msgs)
	})
	return nil
}

func (e *Engine) seen(ctx context.Context, from, name string) error {
	data := ReplyData{Name: name}

	if e.tracker.IsOnline(name) {
		return e.reply(ctx, from, e.replies.seenOnline, data)
	}

	p, ok := e.store.KnownPlayer(name)
	if !ok {
		return e.reply(ctx, from, e.replies.seenUnknown, data)
	}

	left, ok := p.LeftAt()
	if !ok {
		return e.reply(ctx, from, e.replies.seenLongAgo, data)
	}

	data.Age = delivery.AgeString(e.now(), left)
	return e.reply(ctx, from, e.replies.seenAt, data)
}

// HandleJoin records the session and greets real players: a one time intro
// followed by a summary of their unread counts as of now.
func (e *Engine) HandleJoin(ctx context.Context, session, name string) error {
	e.tracker.Join(session, name)

	e.mu.Lock()
	botName, botSession := e.name, e.session
	e.mu.Unlock()

	if e.classifier.Classify(name) != presence.RealUser ||
		e.classifier.Classify(botName) != presence.RealUser ||
		(botSession != "" && session == botSession) {
		return nil
	}

	counts := e.store.Counts(name)
	player := e.store.Player(name)
	step := e.scheduler.Delay()

	var delay time.Duration
	if !player.HadIntro {
		delay += 3 * step
		if e.claimIntro(name) {
			e.scheduler.After(delay, func(ctx context.Context) {
				e.sendIntro(ctx, name)
			})
		}
	}

	delay += 2 * step
	data := ReplyData{Player: name, Bot: botName, Private: counts.Private, Public: counts.Public}
	e.scheduler.After(delay, func(ctx context.Context) {
		if err := e.reply(ctx, name, e.replies.summary, data); err != nil {
			slog.WarnContext(ctx, "sending unread summary", "player", name, "error", err)
		}
	})

	return nil
}

// claimIntro reserves the intro for name so repeated joins while one is
// waiting do not schedule another.
func (e *Engine) claimIntro(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.intros[name]; ok {
		return false
	}
	e.intros[name] = struct{}{}
	return true
}

func (e *Engine) sendIntro(ctx context.Context, name string) {
	defer func() {
		e.mu.Lock()
		delete(e.intros, name)
		e.mu.Unlock()
	}()

	botName, _ := e.Identity()
	if err := e.replyAll(ctx, name, e.replies.intro, ReplyData{Player: name, Bot: botName}); err != nil {
		slog.WarnContext(ctx, "sending intro", "player", name, "error", err)
	}

	e.store.UpdatePlayer(ctx, name, func(p *mailbox.Player) {
		p.HadIntro = true
	})
}

// HandleLeave stamps the leaving player's record.
func (e *Engine) HandleLeave(ctx context.Context, session string) error {
	name, ok := e.tracker.Leave(session)
	if !ok {
		return nil
	}

	left := e.now().UnixMilli()
	e.store.UpdatePlayer(ctx, name, func(p *mailbox.Player) {
		p.LastLeave = &left
	})
	return nil
}

// HandleConnect adopts the bot's identity for a new game connection. Presence
// from any earlier connection is stale, so it is dropped and rebuilt from a
// fresh roster.
func (e *Engine) HandleConnect(ctx context.Context, session, name string) error {
	e.mu.Lock()
	e.session = session
	if name != "" {
		e.name = name
	}
	e.mu.Unlock()

	e.tracker.Reset()
	slog.InfoContext(ctx, "connected to game", "name", name, "session", session)

	if err := e.transport.RequestRoster(ctx); err != nil {
		return fmt.Errorf("requesting roster: %w", err)
	}
	return nil
}

func (e *Engine) reply(ctx context.Context, to string, tmpl *template.Template, data ReplyData) error {
	text, err := render(tmpl, e.fill(to, data))
	if err != nil {
		return err
	}
	return e.transport.SendPrivate(ctx, to, text)
}

func (e *Engine) replyAll(ctx context.Context, to string, tmpls []*template.Template, data ReplyData) error {
	var errs []error
	for _, tmpl := range tmpls {
		errs = append(errs, e.reply(ctx, to, tmpl, data))
	}
	return errors.Join(errs...)
}

func (e *Engine) fill(to string, data ReplyData) ReplyData {
	if data.Player == "" {
		data.Player = to
	}
	if data.Bot == "" {
		data.Bot, _ = e.Identity()
	}
	return data
}
