package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("not connected to game server")
	ErrUnknownEvent = errors.New("unknown event type")
)

// EventType identifies an inbound game event.
type EventType string

const (
	EventPrivateMessage EventType = "private_message"
	EventPlayerJoin     EventType = "player_join"
	EventPlayerLeave    EventType = "player_leave"
	EventConnected      EventType = "connected"
)

// Outbound envelope types.
const (
	typeChat   = "chat"
	typeRoster = "roster"
	typeHello  = "hello"
)

// Event is a single inbound event from the game. Which fields are set depends
// on Type: private messages carry ToBot, From and Text; joins carry Session and
// Name; leaves carry Session; connected carries the bot's own Session and Name.
type Event struct {
	Type    EventType
	ToBot   bool
	From    string
	Text    string
	Session string
	Name    string
}

// Transport is a live link to the game's chat channel.
type Transport interface {
	Events() <-chan Event
	SendPrivate(ctx context.Context, to, text string) error
	RequestRoster(ctx context.Context) error
	Start(ctx context.Context) error
}

// Compose builds the chat line that whispers text to a player.
func Compose(to, text string) string {
	return "@" + to + " " + text
}

// Envelope is the wire framing shared by every transport.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type privateMessagePayload struct {
	ToBot bool   `json:"to_bot"`
	From  string `json:"from"`
	Text  string `json:"text"`
}

type sessionPayload struct {
	Session sessionID `json:"session"`
	Name    string    `json:"name,omitempty"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type helloPayload struct {
	Name     string `json:"name"`
	Ident    string `json:"ident,omitempty"`
	ClientID string `json:"client_id"`
}

// sessionID accepts both numeric and string session identifiers.
type sessionID string

func (s *sessionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = sessionID(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("session must be a string or number: %w", err)
	}
	*s = sessionID(n.String())
	return nil
}

// DecodeEvent parses an inbound envelope.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshalling envelope: %w", err)
	}

	ev := Event{Type: EventType(env.Type)}
	switch ev.Type {
	case EventPrivateMessage:
		var p privateMessagePayload
		if err := unmarshalPayload(env, &p); err != nil {
			return Event{}, err
		}
		if p.From == "" {
			return Event{}, fmt.Errorf("%s: from is required", env.Type)
		}
		ev.ToBot, ev.From, ev.Text = p.ToBot, p.From, p.Text

	case EventPlayerJoin, EventPlayerLeave, EventConnected:
		var p sessionPayload
		if err := unmarshalPayload(env, &p); err != nil {
			return Event{}, err
		}
		if p.Session == "" {
			return Event{}, fmt.Errorf("%s: session is required", env.Type)
		}
		if ev.Type == EventPlayerJoin && p.Name == "" {
			return Event{}, fmt.Errorf("%s: name is required", env.Type)
		}
		ev.Session, ev.Name = string(p.Session), p.Name

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	return ev, nil
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: unmarshalling payload: %w", env.Type, err)
	}
	return nil
}

func encodeEnvelope(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling %s payload: %w", typ, err)
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}
