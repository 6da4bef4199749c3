package session

import (
	"time"

	"github.com/rs/zerolog"
)

// Event reports a state transition.
type Event struct {
	SessionID string    `json:"sessionId"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier receives session events. Notify is called without the session
// lock held, so implementations may read the session.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// LogNotifier writes events to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(e Event) {
	ev := n.Logger.Info()
	if e.To == PhaseFailed {
		ev = n.Logger.Warn()
	}
	ev.Str("session_id", e.SessionID).
		Str("from", string(e.From)).
		Str("to", string(e.To)).
		Str("message", e.Message).
		Msg("Import session transition")
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(e)
		}
	}
}
