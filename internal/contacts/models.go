package contacts

import (
	"context"
	"time"
)

// Status is a named contact state such as "new" or "lost".
type Status struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contact is a stored contact record. Phone number and email are unique
// across all contacts; the email is always stored lowercased.
type Contact struct {
	ID          int64
	FirstName   string
	LastName    string
	PhoneNumber string
	Email       string
	City        string
	StatusID    int64
	StatusName  string
	DateAdded   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName returns "First Last".
func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Sort is a whitelisted ordering for contact listings.
type Sort string

const (
	SortLastNameAsc   Sort = "last_name"
	SortLastNameDesc  Sort = "-last_name"
	SortFirstNameAsc  Sort = "first_name"
	SortFirstNameDesc Sort = "-first_name"
	SortDateAddedAsc  Sort = "date_added"
	SortDateAddedDesc Sort = "-date_added"

	DefaultSort = SortDateAddedDesc
)

// ParseSort returns the matching Sort, or DefaultSort for unknown input.
func ParseSort(s string) Sort {
	switch v := Sort(s); v {
	case SortLastNameAsc, SortLastNameDesc, SortFirstNameAsc, SortFirstNameDesc, SortDateAddedAsc, SortDateAddedDesc:
		return v
	default:
		return DefaultSort
	}
}

// Column returns the sort column and whether the order is descending.
func (s Sort) Column() (column string, desc bool) {
	if len(s) > 0 && s[0] == '-' {
		return string(s[1:]), true
	}
	return string(s), false
}

// Filter selects and orders contacts.
type Filter struct {
	// Search is a case-insensitive substring matched against first name,
	// last name, email, phone number and city. Empty means no filter.
	Search string
	// StatusID restricts results to one status when non-zero.
	StatusID int64
	Sort     Sort
	// Limit <= 0 means no limit.
	Limit  int
	Offset int
}

// Repository is the storage contract for contacts and statuses.
//
// Create and update persist the timestamps given on the record and fill in
// ID and StatusName. Uniqueness and referential violations are reported as
// *ValidationError; missing rows as ErrNotFound.
type Repository interface {
	CreateContact(ctx context.Context, c *Contact) error
	UpdateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, id int64) (Contact, error)
	DeleteContact(ctx context.Context, id int64) error
	ListContacts(ctx context.Context, f Filter) ([]Contact, int, error)

	CreateStatus(ctx context.Context, s *Status) error
	GetStatus(ctx context.Context, id int64) (Status, error)
	// GetOrCreateStatus matches name exactly (case-sensitive).
	GetOrCreateStatus(ctx context.Context, name, description string) (Status, bool, error)
	ListStatuses(ctx context.Context) ([]Status, error)
	// DeleteStatus returns ErrProtected while any contact references the status.
	DeleteStatus(ctx context.Context, id int64) error
}
