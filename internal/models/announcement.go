package models

import (
	"time"

	"github.com/lib/pq"
)

// Announcement is a notice posted to one or more roles. An empty audience
// addresses everyone.
type Announcement struct {
	ID         string         `db:"id" json:"id"`
	Title      string         `db:"title" json:"title"`
	Body       string         `db:"body" json:"body"`
	Audience   pq.StringArray `db:"audience" json:"audience"`
	Grade      *string        `db:"grade" json:"grade,omitempty"`
	AuthorID   string         `db:"author_id" json:"author_id"`
	AuthorRole Role           `db:"author_role" json:"author_role"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// AddressedTo reports whether the announcement targets role.
func (a Announcement) AddressedTo(role Role) bool {
	if len(a.Audience) == 0 {
		return true
	}
	for _, r := range a.Audience {
		if Role(r) == role {
			return true
		}
	}
	return false
}

// AnnouncementFilter narrows announcement listings.
type AnnouncementFilter struct {
	Role  Role
	Limit int
}
