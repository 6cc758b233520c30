package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

type Kind string

const (
	KindFactCommitted Kind = "fact.committed"
	KindFactUpdated   Kind = "fact.updated"
	KindFactsDeleted  Kind = "facts.deleted"
)

// Event describes one change to a sender's stored facts.
type Event struct {
	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	SubjectKey string      `json:"subjectKey"`
	Fact       *facts.Fact `json:"fact,omitempty"`
	At         time.Time   `json:"at"`
}

func NewFactEvent(kind Kind, f facts.Fact) Event {
	return Event{
		ID:         "evt-" + uuid.NewString(),
		Kind:       kind,
		SubjectKey: f.SubjectKey,
		Fact:       &f,
		At:         time.Now().UTC(),
	}
}

func NewDeleteEvent(subjectKey string) Event {
	return Event{
		ID:         "evt-" + uuid.NewString(),
		Kind:       KindFactsDeleted,
		SubjectKey: subjectKey,
		At:         time.Now().UTC(),
	}
}

// Publisher emits fact change events. Publishing is best effort: the
// conversation never waits on or fails because of it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
