package delivery

import (
	"fmt"
	"time"
)

// AgeString describes how long ago t was, relative to now.
func AgeString(now, t time.Time) string {
	diff := max(now.Sub(t), 0)

	switch {
	case diff > 48*time.Hour:
		return "at " + t.UTC().Format("01-02T15:04")
	case diff > 2*time.Hour:
		return fmt.Sprintf("%d h ago", int(diff/time.Hour))
	case diff > time.Minute:
		return fmt.Sprintf("%d min. ago", int(diff/time.Minute))
	default:
		return fmt.Sprintf("%d s ago", int(diff/time.Second))
	}
}
