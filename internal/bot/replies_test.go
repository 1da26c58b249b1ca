package bot

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestReplies_Validate(t *testing.T) {
	tests := map[string]struct {
		replies Replies
		expErr  string
	}{
		"defaults": {
			replies: DefaultReplies(),
		},
		"empty falls back to defaults": {
			replies: Replies{},
		},
		"custom with sprig": {
			replies: Replies{SeenUnknown: "Who is {{ .Name | upper }}?"},
		},
		"bad template": {
			replies: Replies{NoUnread: "{{ .Private "},
			expErr:  "reply no_unread",
		},
		"bad list entry": {
			replies: Replies{Intro: []string{"hi", "{{ end }}"}},
			expErr:  "reply intro[1]",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.replies.Validate()
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := map[string]struct {
		src  string
		data ReplyData
		exp  string
	}{
		"summary": {
			src:  DefaultReplies().Summary,
			data: ReplyData{Private: 2, Public: 0},
			exp:  "You have 2 unread messages and 0 unread public messages.",
		},
		"seen at": {
			src:  DefaultReplies().SeenAt,
			data: ReplyData{Name: "bob", Age: "5 min. ago"},
			exp:  "I have last seen bob 5 min. ago",
		},
		"sprig function": {
			src:  `{{ .Player | title }} has {{ add .Private .Public }} unread.`,
			data: ReplyData{Player: "alice", Private: 1, Public: 2},
			exp:  "Alice has 3 unread.",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := Replies{Summary: tt.src}.compile()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := render(c.summary, tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "text", got, tt.exp)
		})
	}
}
