package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxStatusNameLength = 50

// DefaultStatuses are created by SeedStatuses.
var DefaultStatuses = []Status{
	{Name: "new", Description: "New contact"},
	{Name: "in progress", Description: "Contact in progress"},
	{Name: "lost", Description: "Lost contact"},
	{Name: "outdated", Description: "Outdated contact"},
}

// Page is one page of a contact listing.
type Page struct {
	Contacts []Contact
	Total    int
}

// Service validates input and delegates persistence to a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateContact normalizes, validates and stores a new contact.
// DateAdded defaults to the creation time.
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (Contact, error) {
	in.Normalize()
	if err := s.validateInput(ctx, in); err != nil {
		return Contact{}, err
	}

	now := s.now().UTC()
	c := Contact{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
		City:        in.City,
		StatusID:    in.StatusID,
		DateAdded:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DateAdded != nil {
		c.DateAdded = in.DateAdded.UTC()
	}

	if err := s.repo.CreateContact(ctx, &c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// UpdateContact replaces every writable field of contact id.
func (s *Service) UpdateContact(ctx context.Context, id int64, in ContactInput) (Contact, error) {
	existing, err := s.repo.GetContact(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	return s.update(ctx, existing, in)
}

// PatchContact updates only the fields present in p.
func (s *Service) PatchContact(ctx context.Context, id int64, p ContactPatch) (Contact, error) {
	existing, err := s.repo.GetContact(ctx, id)
	if err != nil {
		return Contact{}, err
	}

	in := InputFromContact(existing)
	p.apply(&in)
	return s.update(ctx, existing, in)
}

func (s *Service) update(ctx context.Context, c Contact, in ContactInput) (Contact, error) {
	in.Normalize()
	if err := s.validateInput(ctx, in); err != nil {
		return Contact{}, err
	}

	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.PhoneNumber = in.PhoneNumber
	c.Email = in.Email
	c.City = in.City
	c.StatusID = in.StatusID
	if in.DateAdded != nil {
		c.DateAdded = in.DateAdded.UTC()
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateContact(ctx, &c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// InputFromContact returns the writable fields of c, e.g. to prefill an edit form.
func InputFromContact(c Contact) ContactInput {
	dateAdded := c.DateAdded
	return ContactInput{
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		City:        c.City,
		StatusID:    c.StatusID,
		DateAdded:   &dateAdded,
	}
}

func (s *Service) GetContact(ctx context.Context, id int64) (Contact, error) {
	return s.repo.GetContact(ctx, id)
}

// DeleteContact hard-deletes contact id.
func (s *Service) DeleteContact(ctx context.Context, id int64) error {
	return s.repo.DeleteContact(ctx, id)
}

// ListContacts returns one page of contacts plus the total match count.
func (s *Service) ListContacts(ctx context.Context, f Filter) (Page, error) {
	f.Search = strings.TrimSpace(f.Search)
	f.Sort = ParseSort(string(f.Sort))
	if f.Offset < 0 {
		f.Offset = 0
	}

	list, total, err := s.repo.ListContacts(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list contacts: %w", err)
	}
	return Page{Contacts: list, Total: total}, nil
}

// validateInput runs field rules and checks the referenced status exists.
func (s *Service) validateInput(ctx context.Context, in ContactInput) error {
	verr := &ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		verr = toValidationError(err)
	}

	if in.StatusID > 0 {
		if _, err := s.repo.GetStatus(ctx, in.StatusID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("load status %d: %w", in.StatusID, err)
			}
			verr.Add("status", MsgUnknownStatus(in.StatusID))
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// ListStatuses returns every status ordered by name.
func (s *Service) ListStatuses(ctx context.Context) ([]Status, error) {
	return s.repo.ListStatuses(ctx)
}

func (s *Service) GetStatus(ctx context.Context, id int64) (Status, error) {
	return s.repo.GetStatus(ctx, id)
}

// CreateStatus stores a new status with a unique name.
func (s *Service) CreateStatus(ctx context.Context, name, description string) (Status, error) {
	name = strings.TrimSpace(name)
	if err := validateStatusName("name", name); err != nil {
		return Status{}, err
	}

	st := Status{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateStatus(ctx, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// EnsureStatus finds a status by exact name or creates it with description.
// created reports whether a new status was stored.
func (s *Service) EnsureStatus(ctx context.Context, name, description string) (Status, bool, error) {
	if err := validateStatusName("status", name); err != nil {
		return Status{}, false, err
	}
	return s.repo.GetOrCreateStatus(ctx, name, description)
}

// DeleteStatus removes a status that no contact references.
func (s *Service) DeleteStatus(ctx context.Context, id int64) error {
	return s.repo.DeleteStatus(ctx, id)
}

// SeedStatuses get-or-creates DefaultStatuses.
func (s *Service) SeedStatuses(ctx context.Context) (created, existing int, err error) {
	for _, def := range DefaultStatuses {
		st, isNew, err := s.repo.GetOrCreateStatus(ctx, def.Name, def.Description)
		if err != nil {
			return created, existing, fmt.Errorf("seed status %q: %w", def.Name, err)
		}
		if isNew {
			created++
			s.logger.Info("status created", zap.String("status", st.Name))
		} else {
			existing++
		}
	}
	return created, existing, nil
}

func validateStatusName(field, name string) error {
	switch {
	case name == "":
		return NewValidationError(field, "This field is required.")
	case len([]rune(name)) > maxStatusNameLength:
		return NewValidationError(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxStatusNameLength))
	}
	return nil
}
