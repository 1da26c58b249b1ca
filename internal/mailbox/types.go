package mailbox

import "time"

// BroadcastRecipient is the log key shared by every player for public messages.
const BroadcastRecipient = "@"

// Message is a single stored message. It is never modified after it is
// appended to a log.
type Message struct {
	From string `json:"from"`
	Time int64  `json:"time"` // milliseconds since epoch
	Text string `json:"msg"`
}

// SentAt returns the message creation time.
func (m Message) SentAt() time.Time {
	return time.UnixMilli(m.Time)
}

// Player holds the per-player cursors into the private and broadcast logs.
type Player struct {
	LastRead   int    `json:"lastRead,omitempty"`
	LastPublic int    `json:"lastPublic,omitempty"`
	LastLeave  *int64 `json:"lastLeave,omitempty"`
	HadIntro   bool   `json:"hadIntro,omitempty"`
}

// LeftAt returns the time of the most recent disconnect, if one was recorded.
func (p Player) LeftAt() (time.Time, bool) {
	if p.LastLeave == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*p.LastLeave), true
}

// Unread is the part of a player's mailbox they have not been shown yet.
type Unread struct {
	Private []Message
	Public  []Message

	// Log lengths at the time the tails were taken.
	PrivateLen int
	PublicLen  int
}

// Empty reports whether neither log has any messages at all.
func (u Unread) Empty() bool {
	return u.PrivateLen == 0 && u.PublicLen == 0
}

// Messages returns the private tail followed by the public tail.
func (u Unread) Messages() []Message {
	out := make([]Message, 0, len(u.Private)+len(u.Public))
	out = append(out, u.Private...)
	return append(out, u.Public...)
}

// Counts is the number of unread private and public messages for a player.
type Counts struct {
	Private int
	Public  int
}

func (p *Player) clone() Player {
	c := *p
	if p.LastLeave != nil {
		v := *p.LastLeave
		c.LastLeave = &v
	}
	return c
}
