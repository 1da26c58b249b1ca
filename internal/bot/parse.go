package bot

import "regexp"

// Unknown is the reply to anything the bot cannot interpret. A message with
// exactly this body is ignored so two bots never answer each other forever.
const Unknown = "I am sorry, I didn't understand that."

var (
	directPattern    = regexp.MustCompile(`^@([^ @]+)\s+(.*)$`)
	broadcastPattern = regexp.MustCompile(`^@@\s+(.*)$`)
	seenPattern      = regexp.MustCompile(`^seen (\S+)`)
)

// Kind is the type of a parsed chat command.
type Kind int

const (
	KindUnknown Kind = iota
	KindSentinel
	KindList
	KindListAll
	KindListPublic
	KindHelp
	KindSeen
	KindDirect
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindSentinel:
		return "sentinel"
	case KindList:
		return "ls"
	case KindListAll:
		return "la"
	case KindListPublic:
		return "lp"
	case KindHelp:
		return "help"
	case KindSeen:
		return "seen"
	case KindDirect:
		return "direct"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Command is a chat line sent to the bot, broken into its parts.
type Command struct {
	Kind Kind
	// Raw is the full line as received.
	Raw string
	// Target is the player named by seen and direct messages.
	Target string
}

// Parse interprets a private chat line. Keywords must match exactly.
func Parse(text string) Command {
	cmd := Command{Raw: text}

	switch text {
	case Unknown:
		cmd.Kind = KindSentinel
		return cmd
	case "ls":
		cmd.Kind = KindList
		return cmd
	case "la":
		cmd.Kind = KindListAll
		return cmd
	case "lp":
		cmd.Kind = KindListPublic
		return cmd
	case "help":
		cmd.Kind = KindHelp
		return cmd
	}

	if m := seenPattern.FindStringSubmatch(text); m != nil {
		cmd.Kind = KindSeen
		cmd.Target = m[1]
		return cmd
	}
	if m := directPattern.FindStringSubmatch(text); m != nil {
		cmd.Kind = KindDirect
		cmd.Target = m[1]
		return cmd
	}
	if broadcastPattern.MatchString(text) {
		cmd.Kind = KindBroadcast
		return cmd
	}

	return cmd
}
