package pipeline

import (
	"time"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/language"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// EventKind discriminates the event stream.
type EventKind int

const (
	// EventText carries one finished transcription line.
	EventText EventKind = iota

	// EventInfo carries an operational notice for the user.
	EventInfo

	// EventStatus reports a lifecycle state change.
	EventStatus
)

// Event is one item on the controller's event stream. Only the fields of
// the matching kind are set.
type Event struct {
	Kind EventKind
	Time time.Time

	// Text events
	UtteranceID string
	Lang        language.Code
	Line        string

	// Info events
	Message string

	// Status events
	State State
}
