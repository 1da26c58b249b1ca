package console

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-mailbot/internal"
	"github.com/pixil98/go-mailbot/internal/display"
	"github.com/pixil98/go-mailbot/internal/mailbox"
	"github.com/pixil98/go-mailbot/internal/presence"
)

const defaultPrompt = "mailbot> "

// Transport is the game link the console can poke directly.
type Transport interface {
	SendPrivate(ctx context.Context, to, text string) error
	RequestRoster(ctx context.Context) error
}

// Status reports live bot state that does not belong to the mailbox.
type Status interface {
	Identity() (name string, session string)
}

// Pending reports how many deliveries are waiting to fire.
type Pending interface {
	Len() int
}

// UserError is shown to the operator instead of ending the session.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}

var errQuit = errors.New("quit")

type ConsoleOpt func(*Console)

// WithPassword requires operators to enter password before any command.
func WithPassword(password string) ConsoleOpt {
	return func(c *Console) {
		c.password = password
	}
}

// WithPrompt replaces the "mailbot> " prompt.
func WithPrompt(prompt string) ConsoleOpt {
	return func(c *Console) {
		c.prompt = prompt
	}
}

// WithClock replaces the clock used to render ages.
func WithClock(now func() time.Time) ConsoleOpt {
	return func(c *Console) {
		c.now = now
	}
}

// WithStatus adds bot identity and pending delivery counts to status output.
// WithLoginDelay pauses after each wrong password.
func WithLoginDelay(d time.Duration) ConsoleOpt {
	return func(c *Console) {
		c.loginDelay = d
	}
}

func WithWidth(width uint) ConsoleOpt {
	return func(c *Console) {
		c.width = width
	}
}

func WithStatus(s Status, p Pending) ConsoleOpt {
	return func(c *Console) {
		c.status = s
		c.pending = p
	}
}

// Console is an operator shell over the running bot.
type Console struct {
	store     *mailbox.Store
	tracker   *presence.Tracker
	transport Transport
	status    Status
	pending   Pending

	password   string
	loginDelay time.Duration
	prompt     string
	width      uint
	now        func() time.Time
	commands   map[string]command
}

func NewConsole(store *mailbox.Store, tracker *presence.Tracker, tr Transport, opts ...ConsoleOpt) *Console {
	c := &Console{
		store:     store,
		tracker:   tracker,
		transport: tr,
		prompt:    defaultPrompt,
		width:     display.DefaultWidth,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.commands = c.buildCommands()

	return c
}

// RunSession serves one operator connection until they quit, the connection
// closes or ctx is cancelled.
func (c *Console) RunSession(ctx context.Context, rw io.ReadWriter) error {
	id := uuid.New().String()
	br := bufio.NewReader(rw)

	if c.password != "" {
		_, err := internal.Prompt(ctx, br, rw, "Password: ",
			internal.WithValidator(func(s string) (bool, string) {
				if subtle.ConstantTimeCompare([]byte(s), []byte(c.password)) == 1 {
					return true, ""
				}
				return false, "Wrong password.\n"
			}),
			internal.WithMaxTries(3),
			internal.WithFailureDelay(c.loginDelay),
		)
		if err != nil {
			slog.WarnContext(ctx, "console login failed", "session", id, "error", err)
			return nil
		}
	}

	slog.InfoContext(ctx, "console session started", "session", id)
	defer slog.InfoContext(ctx, "console session ended", "session", id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inputChan := make(chan string)
	inputErrChan := make(chan error, 1)
	go func() {
		defer close(inputChan)
		scanner := bufio.NewScanner(br)
		for scanner.Scan() {
			select {
			case inputChan <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		inputErrChan <- scanner.Err()
	}()

	if err := c.writeLine(rw, "Type \"help\" for a list of commands."); err != nil {
		return err
	}
	if err := c.writePrompt(rw); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-inputChan:
			if !ok {
				select {
				case err := <-inputErrChan:
					return err
				default:
					return nil
				}
			}

			err := c.Exec(ctx, rw, line)
			if errors.Is(err, errQuit) {
				return c.writeLine(rw, "Goodbye!")
			}
			if err != nil {
				var userErr *UserError
				if !errors.As(err, &userErr) {
					return fmt.Errorf("console command failed: %w", err)
				}
				if err := c.writeLine(rw, userErr.Message); err != nil {
					return err
				}
			}

			if err := c.writePrompt(rw); err != nil {
				return err
			}
		}
	}
}

// Exec runs a single console line.
func (c *Console) Exec(ctx context.Context, w io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	name, rest, _ := strings.Cut(line, " ")
	cmd, ok := c.commands[strings.ToLower(name)]
	if !ok {
		return NewUserError(fmt.Sprintf("Unknown command: %s", name))
	}

	return cmd.run(ctx, w, strings.TrimSpace(rest))
}

func (c *Console) writePrompt(w io.Writer) error {
	_, err := w.Write([]byte(c.prompt))
	return err
}

func (c *Console) writeLine(w io.Writer, msg string) error {
	_, err := w.Write([]byte(display.Wrap(msg, c.width) + "\n"))
	return err
}
