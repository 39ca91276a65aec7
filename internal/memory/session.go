package memory

import "time"

// resumeWindow is how recently a session must have been active to be
// picked up again instead of starting fresh.
const resumeWindow = time.Hour

// Decision is the outcome of a session resume check.
type Decision int

const (
	CreateNew Decision = iota
	Resume
)

func (d Decision) String() string {
	if d == Resume {
		return "resume"
	}
	return "create-new"
}

// ChooseSession decides whether candidate is fresh enough to resume at
// time now. A nil candidate always starts a new session. Stale sessions
// are abandoned in place, never deleted; the caller just stops using
// them.
func ChooseSession(candidate *Session, now time.Time) Decision {
	if candidate == nil {
		return CreateNew
	}
	last := time.UnixMilli(candidate.LastActivityMs)
	if now.Sub(last) < resumeWindow {
		return Resume
	}
	return CreateNew
}
