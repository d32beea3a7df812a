// Package publisher emits application lifecycle events to interested
// downstream consumers.
package publisher

import (
	"context"
	"time"
)

// ApplicationCreated is published after a new application row is persisted.
type ApplicationCreated struct {
	ApplicationID int64     `json:"application_id"`
	CompanyName   string    `json:"company_name"`
	Source        string    `json:"source"`
	SourceURL     string    `json:"source_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Publisher delivers one event payload and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
