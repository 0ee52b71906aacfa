package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/contact-manager/internal/contacts"
)

type contactListItem struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	City       string    `json:"city"`
	StatusName string    `json:"status_name"`
	DateAdded  time.Time `json:"date_added"`
}

type contactDetail struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	City        string    `json:"city"`
	Status      int64     `json:"status"`
	StatusName  string    `json:"status_name"`
	DateAdded   time.Time `json:"date_added"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type statusItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toListItem(c contacts.Contact) contactListItem {
	return contactListItem{
		ID:         c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		City:       c.City,
		StatusName: c.StatusName,
		DateAdded:  c.DateAdded,
	}
}

func toDetail(c contacts.Contact) contactDetail {
	return contactDetail{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		City:        c.City,
		Status:      c.StatusID,
		StatusName:  c.StatusName,
		DateAdded:   c.DateAdded,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toStatusItem(s contacts.Status) statusItem {
	return statusItem{ID: s.ID, Name: s.Name, Description: s.Description}
}

type contactsAPI struct {
	service *contacts.Service
}

func (h contactsAPI) register(r fiber.Router) {
	r.Get("/contacts", h.list)
	r.Post("/contacts", h.create)
	r.Get("/contacts/:id", h.get)
	r.Put("/contacts/:id", h.update)
	r.Patch("/contacts/:id", h.patch)
	r.Delete("/contacts/:id", h.delete)

	r.Get("/statuses", h.listStatuses)
	r.Get("/statuses/:id", h.getStatus)
}

// list accepts the same search, sort and status parameters as the web list
// and returns every match.
func (h contactsAPI) list(c *fiber.Ctx) error {
	page, err := h.service.ListContacts(c.UserContext(), queryFilter(c))
	if err != nil {
		return err
	}

	out := make([]contactListItem, 0, len(page.Contacts))
	for _, ct := range page.Contacts {
		out = append(out, toListItem(ct))
	}
	return c.JSON(out)
}

func (h contactsAPI) create(c *fiber.Ctx) error {
	var in contacts.ContactInput
	if err := c.BodyParser(&in); err != nil {
		return parseError(c, err)
	}

	created, err := h.service.CreateContact(c.UserContext(), in)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDetail(created))
}

func (h contactsAPI) get(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	ct, err := h.service.GetContact(c.UserContext(), id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toDetail(ct))
}

func (h contactsAPI) update(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in contacts.ContactInput
	if err := c.BodyParser(&in); err != nil {
		return parseError(c, err)
	}

	updated, err := h.service.UpdateContact(c.UserContext(), id, in)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toDetail(updated))
}

func (h contactsAPI) patch(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var p contacts.ContactPatch
	if err := c.BodyParser(&p); err != nil {
		return parseError(c, err)
	}

	updated, err := h.service.PatchContact(c.UserContext(), id, p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toDetail(updated))
}

func (h contactsAPI) delete(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := h.service.DeleteContact(c.UserContext(), id); err != nil {
		return apiError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h contactsAPI) listStatuses(c *fiber.Ctx) error {
	statuses, err := h.service.ListStatuses(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]statusItem, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toStatusItem(st))
	}
	return c.JSON(out)
}

func (h contactsAPI) getStatus(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	st, err := h.service.GetStatus(c.UserContext(), id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toStatusItem(st))
}

func pathID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Not found."})
}

func parseError(c *fiber.Ctx, err error) error {
	if errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"detail": "Unsupported media type in request."})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "JSON parse error - " + err.Error()})
}

// apiError maps service errors onto REST responses. Validation failures
// produce a field-keyed body such as {"email": ["..."]}.
func apiError(c *fiber.Ctx, err error) error {
	var verr *contacts.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(verr.Fields())
	case errors.Is(err, contacts.ErrNotFound):
		return notFound(c)
	case errors.Is(err, contacts.ErrProtected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"detail": err.Error()})
	default:
		return err
	}
}
