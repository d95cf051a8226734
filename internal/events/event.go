// Package events carries folder change notifications to cache invalidation
// subscribers. Posting is fire-and-forget: a sink failure never affects the
// operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TopicFolderChanged is posted once per folder whose identifier changed
const TopicFolderChanged = "foldertree/folder/changed"

// Event is a folder change notification
type Event struct {
	ID             uuid.UUID `json:"id"`
	Topic          string    `json:"topic"`
	ContextID      int       `json:"context_id"`
	UserID         int       `json:"user_id"`
	FolderID       string    `json:"folder_id"` // Identifier before the change
	ContentRelated bool      `json:"content_related"`
	Immediate      bool      `json:"immediate"`
	At             time.Time `json:"at"`
}

// FolderChanged builds the notification for a rewritten folder identifier
func FolderChanged(contextID, userID int, oldFolderID string) Event {
	return Event{
		ID:             uuid.New(),
		Topic:          TopicFolderChanged,
		ContextID:      contextID,
		UserID:         userID,
		FolderID:       oldFolderID,
		ContentRelated: false,
		Immediate:      true,
		At:             time.Now().UTC(),
	}
}

// Sink receives events
type Sink interface {
	Post(ctx context.Context, e Event) error
}

// NopSink drops every event
type NopSink struct{}

// Post implements Sink
func (NopSink) Post(context.Context, Event) error { return nil }
