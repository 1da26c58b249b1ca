package bot

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pixil98/go-errors"
)

// templateFuncs provides utility functions for reply templates.
var templateFuncs = sprig.TxtFuncMap()

// Replies holds the text templates the bot answers with. Each entry is a Go
// text/template with sprig functions; empty entries fall back to the defaults.
type Replies struct {
	Guest       string   `json:"guest"`
	NoMessages  string   `json:"no_messages"`
	NoUnread    string   `json:"no_unread"`
	NoPublic    string   `json:"no_public"`
	Help        []string `json:"help"`
	SeenOnline  string   `json:"seen_online"`
	SeenUnknown string   `json:"seen_unknown"`
	SeenLongAgo string   `json:"seen_long_ago"`
	SeenAt      string   `json:"seen_at"`
	Intro       []string `json:"intro"`
	Summary     string   `json:"summary"`
}

func DefaultReplies() Replies {
	return Replies{
		Guest:      "Nice to meet you. Please authenticate and I may help you :)",
		NoMessages: "You have no messages.",
		NoUnread:   "You have no unread messages.",
		NoPublic:   "There are no public messages.",
		Help: []string{
			"Send private messages to use my commands:",
			" ls (list unread), la (list all private), lp (list all public)",
			" @user msgtext (send to user), @@ msgtext (send to all)",
		},
		SeenOnline:  "Player {{ .Name }} is online now.",
		SeenUnknown: "I don't know who {{ .Name }} is.",
		SeenLongAgo: "I haven't seen {{ .Name }} for a long time...",
		SeenAt:      "I have last seen {{ .Name }} {{ .Age }}",
		Intro: []string{
			"Hi! I can get your messages to players when they come online",
			`To start using me type "@mailbot help"`,
		},
		Summary: "You have {{ .Private }} unread messages and {{ .Public }} unread public messages.",
	}
}

// ReplyData is what reply templates can reference.
type ReplyData struct {
	// Player is the player being answered.
	Player string
	// Bot is the bot's own name.
	Bot string
	// Name is the player asked about by seen.
	Name string
	// Age is when Name was last seen, as rendered for delivered messages.
	Age     string
	Private int
	Public  int
}

type replies struct {
	guest       *template.Template
	noMessages  *template.Template
	noUnread    *template.Template
	noPublic    *template.Template
	help        []*template.Template
	seenOnline  *template.Template
	seenUnknown *template.Template
	seenLongAgo *template.Template
	seenAt      *template.Template
	intro       []*template.Template
	summary     *template.Template
}

// withDefaults fills every empty entry from DefaultReplies.
func (r Replies) withDefaults() Replies {
	d := DefaultReplies()
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	pickAll := func(v, def []string) []string {
		if len(v) == 0 {
			return def
		}
		return v
	}

	return Replies{
		Guest:       pick(r.Guest, d.Guest),
		NoMessages:  pick(r.NoMessages, d.NoMessages),
		NoUnread:    pick(r.NoUnread, d.NoUnread),
		NoPublic:    pick(r.NoPublic, d.NoPublic),
		Help:        pickAll(r.Help, d.Help),
		SeenOnline:  pick(r.SeenOnline, d.SeenOnline),
		SeenUnknown: pick(r.SeenUnknown, d.SeenUnknown),
		SeenLongAgo: pick(r.SeenLongAgo, d.SeenLongAgo),
		SeenAt:      pick(r.SeenAt, d.SeenAt),
		Intro:       pickAll(r.Intro, d.Intro),
		Summary:     pick(r.Summary, d.Summary),
	}
}

// Validate checks that every template parses.
func (r Replies) Validate() error {
	_, err := r.compile()
	return err
}

func (r Replies) compile() (*replies, error) {
	r = r.withDefaults()
	el := errors.NewErrorList()

	one := func(name, src string) *template.Template {
		tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(src)
		if err != nil {
			el.Add(fmt.Errorf("reply %s: %w", name, err))
		}
		return tmpl
	}
	many := func(name string, srcs []string) []*template.Template {
		out := make([]*template.Template, 0, len(srcs))
		for i, src := range srcs {
			out = append(out, one(fmt.Sprintf("%s[%d]", name, i), src))
		}
		return out
	}

	c := &replies{
		guest:       one("guest", r.Guest),
		noMessages:  one("no_messages", r.NoMessages),
		noUnread:    one("no_unread", r.NoUnread),
		noPublic:    one("no_public", r.NoPublic),
		help:        many("help", r.Help),
		seenOnline:  one("seen_online", r.SeenOnline),
		seenUnknown: one("seen_unknown", r.SeenUnknown),
		seenLongAgo: one("seen_long_ago", r.SeenLongAgo),
		seenAt:      one("seen_at", r.SeenAt),
		intro:       many("intro", r.Intro),
		summary:     one("summary", r.Summary),
	}

	if err := el.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func render(tmpl *template.Template, data ReplyData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
