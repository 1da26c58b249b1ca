package presence

import "strings"

// DefaultGuestPrefix marks unauthenticated players in the game.
const DefaultGuestPrefix = "guest"

// Classification separates authenticated players from transient guests.
type Classification int

const (
	RealUser Classification = iota
	GuestUser
)

func (c Classification) String() string {
	switch c {
	case RealUser:
		return "real"
	case GuestUser:
		return "guest"
	default:
		return "unknown"
	}
}

// Classifier decides a player's Classification from their name.
type Classifier struct {
	GuestPrefix string
}

func NewClassifier(guestPrefix string) Classifier {
	if guestPrefix == "" {
		guestPrefix = DefaultGuestPrefix
	}
	return Classifier{GuestPrefix: guestPrefix}
}

func (c Classifier) Classify(name string) Classification {
	if strings.HasPrefix(name, c.GuestPrefix) {
		return GuestUser
	}
	return RealUser
}
