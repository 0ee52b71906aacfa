package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/contact-manager/internal/contacts"
)

// MemoryStore is a concurrency-safe in-memory contacts.Repository.
// It enforces the same uniqueness and reference rules as the database schema.
type MemoryStore struct {
	mu sync.RWMutex

	contacts map[int64]contacts.Contact
	statuses map[int64]contacts.Status

	nextContactID int64
	nextStatusID  int64

	now func() time.Time
}

var _ contacts.Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts: make(map[int64]contacts.Contact),
		statuses: make(map[int64]contacts.Status),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateContact(_ context.Context, c *contacts.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkContact(*c, 0); err != nil {
		return err
	}

	s.nextContactID++
	c.ID = s.nextContactID
	c.StatusName = s.statuses[c.StatusID].Name
	s.contacts[c.ID] = *c
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, c *contacts.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[c.ID]; !ok {
		return contacts.ErrNotFound
	}
	if err := s.checkContact(*c, c.ID); err != nil {
		return err
	}

	c.StatusName = s.statuses[c.StatusID].Name
	s.contacts[c.ID] = *c
	return nil
}

// checkContact reports unique and reference violations, ignoring contact self.
// Callers must hold the write lock.
func (s *MemoryStore) checkContact(c contacts.Contact, self int64) error {
	verr := &contacts.ValidationError{}
	for id, other := range s.contacts {
		if id == self {
			continue
		}
		if other.PhoneNumber == c.PhoneNumber {
			verr.Add("phone_number", contacts.MsgDuplicatePhone)
		}
		if strings.EqualFold(other.Email, c.Email) {
			verr.Add("email", contacts.MsgDuplicateEmail)
		}
	}
	if _, ok := s.statuses[c.StatusID]; !ok {
		verr.Add("status", contacts.MsgUnknownStatus(c.StatusID))
	}
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

func (s *MemoryStore) GetContact(_ context.Context, id int64) (contacts.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok {
		return contacts.Contact{}, contacts.ErrNotFound
	}
	c.StatusName = s.statuses[c.StatusID].Name
	return c, nil
}

func (s *MemoryStore) DeleteContact(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return contacts.ErrNotFound
	}
	delete(s.contacts, id)
	return nil
}

// ListContacts filters, sorts and pages contacts. Ties are broken by ID.
func (s *MemoryStore) ListContacts(_ context.Context, f contacts.Filter) ([]contacts.Contact, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(f.Search)
	matched := make([]contacts.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if f.StatusID != 0 && c.StatusID != f.StatusID {
			continue
		}
		if needle != "" && !matchesSearch(c, needle) {
			continue
		}
		c.StatusName = s.statuses[c.StatusID].Name
		matched = append(matched, c)
	}

	column, desc := contacts.ParseSort(string(f.Sort)).Column()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var cmp int
		switch column {
		case "last_name":
			cmp = strings.Compare(a.LastName, b.LastName)
		case "first_name":
			cmp = strings.Compare(a.FirstName, b.FirstName)
		default:
			cmp = a.DateAdded.Compare(b.DateAdded)
		}
		if cmp == 0 {
			return a.ID < b.ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func matchesSearch(c contacts.Contact, needle string) bool {
	for _, field := range []string{c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.City} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateStatus(_ context.Context, st *contacts.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statusByName(st.Name); ok {
		return contacts.NewValidationError("name", contacts.MsgDuplicateStatus)
	}
	s.insertStatus(st)
	return nil
}

func (s *MemoryStore) GetStatus(_ context.Context, id int64) (contacts.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[id]
	if !ok {
		return contacts.Status{}, contacts.ErrNotFound
	}
	return st, nil
}

func (s *MemoryStore) GetOrCreateStatus(_ context.Context, name, description string) (contacts.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.statusByName(name); ok {
		return st, false, nil
	}
	st := contacts.Status{Name: name, Description: description}
	s.insertStatus(&st)
	return st, true, nil
}

func (s *MemoryStore) ListStatuses(_ context.Context) ([]contacts.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contacts.Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteStatus(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[id]; !ok {
		return contacts.ErrNotFound
	}
	for _, c := range s.contacts {
		if c.StatusID == id {
			return contacts.ErrProtected
		}
	}
	delete(s.statuses, id)
	return nil
}

// statusByName matches exactly. Callers must hold the lock.
func (s *MemoryStore) statusByName(name string) (contacts.Status, bool) {
	for _, st := range s.statuses {
		if st.Name == name {
			return st, true
		}
	}
	return contacts.Status{}, false
}

func (s *MemoryStore) insertStatus(st *contacts.Status) {
	s.nextStatusID++
	st.ID = s.nextStatusID
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now().UTC()
	}
	s.statuses[st.ID] = *st
}
