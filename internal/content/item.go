package content

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a content item.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

// DefaultPlatform is the platform selected when none is configured.
const DefaultPlatform = "twitter"

var (
	// ErrNotFound is returned when an item id does not exist in the store.
	ErrNotFound = errors.New("content item not found")

	// ErrNotScheduled is returned by a write-back when the item already left
	// the scheduled state, typically because an overlapping run resolved it.
	ErrNotScheduled = errors.New("content item is no longer scheduled")
)

// RawList is a mention or tag list as persisted: normally a JSON array of
// strings, but stores hold hand-edited values too, so it may be malformed.
type RawList string

// Item is a persisted content item.
type Item struct {
	ID       string
	Platform string
	Title    string
	Status   Status

	ScheduledAt    *time.Time
	ParentID       *string
	ThreadPosition *int

	Body     string
	Mentions RawList
	Tags     RawList

	ExternalID  string
	ExternalURL string
	PostedAt    *time.Time
	Notes       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParent reports whether the item is a reply in a thread.
func (it Item) HasParent() bool {
	return it.ParentID != nil && *it.ParentID != ""
}

// Parent returns the parent id, or "" for a thread root.
func (it Item) Parent() string {
	if !it.HasParent() {
		return ""
	}
	return *it.ParentID
}

// Position returns the thread position, defaulting to 0.
func (it Item) Position() int {
	if it.ThreadPosition == nil {
		return 0
	}
	return *it.ThreadPosition
}

// IsDue reports whether the item is scheduled and its release time is absent
// or not after now.
func (it Item) IsDue(now time.Time) bool {
	if it.Status != StatusScheduled {
		return false
	}
	return it.ScheduledAt == nil || !it.ScheduledAt.After(now)
}

// Label is a short human description for log lines.
func (it Item) Label() string {
	if it.Title == "" {
		return "Untitled"
	}
	return it.Title
}

// Receipt is what a transport returns for a published message.
type Receipt struct {
	ExternalID  string `json:"external_id"`
	ExternalURL string `json:"external_url,omitempty"`
}

// ParentState is the subset of a parent item needed to thread a reply.
type ParentState struct {
	Status     Status
	ExternalID string
}

// Ready reports whether a reply can be attached to this parent.
func (p ParentState) Ready() bool {
	return p.Status == StatusPosted && p.ExternalID != ""
}

// Outcome is the terminal result written back for one item.
type Outcome struct {
	Status      Status
	ExternalID  string
	ExternalURL string
	PostedAt    time.Time
	Note        string
	UpdatedAt   time.Time
}

// Posted builds the outcome of a successful publish.
func Posted(r Receipt, at time.Time) Outcome {
	return Outcome{
		Status:      StatusPosted,
		ExternalID:  r.ExternalID,
		ExternalURL: r.ExternalURL,
		PostedAt:    at,
		UpdatedAt:   at,
	}
}

// Failed builds the outcome of a failed publish.
func Failed(note string, at time.Time) Outcome {
	return Outcome{
		Status:    StatusFailed,
		Note:      note,
		UpdatedAt: at,
	}
}

// Validate checks that the outcome is a legal terminal transition.
// An external id is carried if and only if the status is posted.
func (o Outcome) Validate() error {
	switch o.Status {
	case StatusPosted:
		if o.ExternalID == "" {
			return fmt.Errorf("posted outcome requires an external id")
		}
	case StatusFailed:
		if o.ExternalID != "" {
			return fmt.Errorf("failed outcome must not carry an external id")
		}
	default:
		return fmt.Errorf("outcome status %q is not terminal", o.Status)
	}
	return nil
}
