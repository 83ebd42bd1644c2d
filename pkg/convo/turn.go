package convo

import "time"

// Role identifies the speaker of a transcript turn.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
)

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Turn is one utterance in a session transcript. Turns are append-only and
// totally ordered per session by Seq.
type Turn struct {
	SessionID string
	Seq       int
	Role      Role
	Text      string
	AudioPath string
	AudioURL  string
	CreatedAt time.Time
}

// HasAudio reports whether a synthesized artifact backs this turn.
func (t Turn) HasAudio() bool {
	return t.AudioURL != ""
}
