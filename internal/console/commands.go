package console

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pixil98/go-mailbot/internal/delivery"
	"github.com/pixil98/go-mailbot/internal/display"
	"github.com/pixil98/go-mailbot/internal/mailbox"
)

const logIndent = 4

type command struct {
	usage string
	about string
	run   func(ctx context.Context, w io.Writer, args string) error
}

func (c *Console) buildCommands() map[string]command {
	return map[string]command{
		"help": {
			usage: "help",
			about: "list console commands",
			run:   c.help,
		},
		"who": {
			usage: "who",
			about: "list players online now",
			run:   c.who,
		},
		"players": {
			usage: "players",
			about: "list every known player with unread counts",
			run:   c.players,
		},
		"player": {
			usage: "player <name>",
			about: "show a player's record",
			run:   c.player,
		},
		"log": {
			usage: "log <recipient>",
			about: "show a recipient's messages, @ for public",
			run:   c.log,
		},
		"send": {
			usage: "send <player> <text>",
			about: "whisper text to a player as the bot",
			run:   c.send,
		},
		"roster": {
			usage: "roster",
			about: "ask the game for the list of online players",
			run:   c.roster,
		},
		"status": {
			usage: "status",
			about: "show the bot's connection and queue state",
			run:   c.showStatus,
		},
		"save": {
			usage: "save",
			about: "write the mailbox to storage now",
			run:   c.save,
		},
		"quit": {
			usage: "quit",
			about: "close this console session",
			run: func(context.Context, io.Writer, string) error {
				return errQuit
			},
		},
	}
}

func (c *Console) help(_ context.Context, w io.Writer, _ string) error {
	var sb strings.Builder
	for _, name := range slices.Sorted(maps.Keys(c.commands)) {
		cmd := c.commands[name]
		fmt.Fprintf(&sb, "  %-22s %s\n", cmd.usage, cmd.about)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (c *Console) who(_ context.Context, w io.Writer, _ string) error {
	online := c.tracker.Online()
	if len(online) == 0 {
		return c.writeLine(w, "Nobody is online.")
	}
	return c.writeLine(w, fmt.Sprintf("%d online: %s", len(online), strings.Join(online, ", ")))
}

func (c *Console) players(_ context.Context, w io.Writer, _ string) error {
	players := c.store.Players()
	if len(players) == 0 {
		return c.writeLine(w, "No known players.")
	}

	tbl := display.NewTable(
		display.Column{Title: "NAME", Width: 20},
		display.Column{Title: "PRIVATE", Width: 8, Align: display.AlignRight},
		display.Column{Title: "PUBLIC", Width: 8, Align: display.AlignRight},
		display.Column{Title: "LAST SEEN"},
	)
	for _, name := range slices.Sorted(maps.Keys(players)) {
		counts := c.store.Counts(name)
		tbl.AddRow(name, strconv.Itoa(counts.Private), strconv.Itoa(counts.Public), c.lastSeen(name, players[name]))
	}
	_, err := io.WriteString(w, tbl.String())
	return err
}

func (c *Console) player(_ context.Context, w io.Writer, args string) error {
	name := firstWord(args)
	if name == "" {
		return NewUserError("Usage: player <name>")
	}

	p, ok := c.store.KnownPlayer(name)
	if !ok {
		return NewUserError(fmt.Sprintf("No such player: %s", name))
	}
	counts := c.store.Counts(name)

	lines := []string{
		display.Capitalize(name),
		fmt.Sprintf("  read:      %d private, %d public", p.LastRead, p.LastPublic),
		fmt.Sprintf("  unread:    %d private, %d public", counts.Private, counts.Public),
		fmt.Sprintf("  intro:     %t", p.HadIntro),
		fmt.Sprintf("  last seen: %s", c.lastSeen(name, p)),
	}
	return c.writeLine(w, strings.Join(lines, "\n"))
}

func (c *Console) log(_ context.Context, w io.Writer, args string) error {
	recipient := firstWord(args)
	if recipient == "" {
		return NewUserError("Usage: log <recipient>")
	}
	if _, ok := c.store.Recipients()[recipient]; !ok {
		return NewUserError(fmt.Sprintf("No messages for %s.", recipient))
	}

	msgs := c.store.Log(recipient)
	if len(msgs) == 0 {
		return NewUserError(fmt.Sprintf("No messages for %s.", recipient))
	}

	now := c.now()
	var sb strings.Builder
	for i, m := range msgs {
		sb.WriteString(display.Hang(delivery.Render(i+1, delivery.AgeString(now, m.SentAt()), m), c.width, logIndent))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (c *Console) send(ctx context.Context, w io.Writer, args string) error {
	to, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if to == "" || text == "" {
		return NewUserError("Usage: send <player> <text>")
	}

	if err := c.transport.SendPrivate(ctx, to, text); err != nil {
		return NewUserError(fmt.Sprintf("Sending failed: %v", err))
	}
	return c.writeLine(w, fmt.Sprintf("Sent to %s.", to))
}

func (c *Console) roster(ctx context.Context, w io.Writer, _ string) error {
	if err := c.transport.RequestRoster(ctx); err != nil {
		return NewUserError(fmt.Sprintf("Roster request failed: %v", err))
	}
	return c.writeLine(w, "Roster requested.")
}

func (c *Console) showStatus(_ context.Context, w io.Writer, _ string) error {
	var lines []string
	if c.status != nil {
		name, session := c.status.Identity()
		if session == "" {
			session = "not connected"
		}
		lines = append(lines, fmt.Sprintf("bot:        %s (session %s)", name, session))
	}
	lines = append(lines,
		fmt.Sprintf("online:     %d", c.tracker.Count()),
		fmt.Sprintf("players:    %d", len(c.store.Players())),
		fmt.Sprintf("recipients: %d", len(c.store.Recipients())),
	)
	if c.pending != nil {
		lines = append(lines, fmt.Sprintf("pending:    %d", c.pending.Len()))
	}
	return c.writeLine(w, strings.Join(lines, "\n"))
}

func (c *Console) save(ctx context.Context, w io.Writer, _ string) error {
	if err := c.store.Persist(ctx); err != nil {
		return NewUserError(fmt.Sprintf("Save failed: %v", err))
	}
	return c.writeLine(w, "Saved.")
}

func (c *Console) lastSeen(name string, p mailbox.Player) string {
	if c.tracker.IsOnline(name) {
		return "online"
	}
	left, ok := p.LeftAt()
	if !ok {
		return "never"
	}
	return delivery.AgeString(c.now(), left)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
