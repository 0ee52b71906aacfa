package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"

	"github.com/i474232898/contact-manager/internal/contacts"
)

const (
	contactsPerPage = 20

	importPath  = "/import-csv"
	importTitle = "Import contacts"
)

type listPage struct {
	pageData
	Contacts []contacts.Contact
	Statuses []contacts.Status
	Search   string
	Sort     contacts.Sort
	StatusID int64
	Total    int
	Page     int
	Pages    int
}

func (p listPage) PrevPage() int { return p.Page - 1 }
func (p listPage) NextPage() int { return p.Page + 1 }

func (p listPage) StatusParam() string {
	if p.StatusID == 0 {
		return ""
	}
	return strconv.FormatInt(p.StatusID, 10)
}

// toggle returns the opposite direction when column is the active sort.
func (p listPage) toggle(asc contacts.Sort) contacts.Sort {
	if p.Sort == asc {
		return "-" + asc
	}
	return asc
}

func (p listPage) FirstNameSort() contacts.Sort { return p.toggle(contacts.SortFirstNameAsc) }
func (p listPage) LastNameSort() contacts.Sort  { return p.toggle(contacts.SortLastNameAsc) }
func (p listPage) DateAddedSort() contacts.Sort { return p.toggle(contacts.SortDateAddedAsc) }

type formPage struct {
	pageData
	Input    contacts.ContactInput
	Errors   map[string][]string
	Statuses []contacts.Status
}

type deletePage struct {
	pageData
	Contact contacts.Contact
}

type importPage struct {
	pageData
	UploadError string
}

type webUI struct {
	service  *contacts.Service
	importer *contacts.Importer
	sessions *session.Store
	logger   *zap.Logger
}

func (h webUI) register(app *fiber.App) {
	app.Get("/", h.list)
	app.Get("/contact/new", h.newForm)
	app.Post("/contact/new", h.create)
	app.Get("/contact/:id/edit", h.editForm)
	app.Post("/contact/:id/edit", h.update)
	app.Get("/contact/:id/delete", h.confirmDelete)
	app.Post("/contact/:id/delete", h.delete)
	app.Get(importPath, h.importForm)
	app.Post(importPath, h.importCSV)
	app.Get("/export", h.export)
}

func (h webUI) page(c *fiber.Ctx, title string) pageData {
	return pageData{Title: title, Flashes: popFlashes(c, h.sessions)}
}

func (h webUI) flash(c *fiber.Ctx, level, text string) {
	if err := addFlash(c, h.sessions, level, text); err != nil {
		h.logger.Warn("flash message dropped", zap.Error(err))
	}
}

func (h webUI) list(c *fiber.Ctx) error {
	page := max(c.QueryInt("page", 1), 1)

	ctx := c.UserContext()
	filter := queryFilter(c)
	filter.Limit = contactsPerPage
	filter.Offset = (page - 1) * contactsPerPage

	result, err := h.service.ListContacts(ctx, filter)
	if err != nil {
		return err
	}
	statuses, err := h.service.ListStatuses(ctx)
	if err != nil {
		return err
	}

	pages := (result.Total + contactsPerPage - 1) / contactsPerPage
	return render(c, fiber.StatusOK, "list", listPage{
		pageData: h.page(c, "Contacts"),
		Contacts: result.Contacts,
		Statuses: statuses,
		Search:   strings.TrimSpace(filter.Search),
		Sort:     contacts.ParseSort(string(filter.Sort)),
		StatusID: filter.StatusID,
		Total:    result.Total,
		Page:     page,
		Pages:    max(pages, 1),
	})
}

// queryFilter reads the search, sort and status parameters shared by the
// list page, the export download and the REST list.
func queryFilter(c *fiber.Ctx) contacts.Filter {
	return contacts.Filter{
		Search:   c.Query("search"),
		Sort:     contacts.Sort(c.Query("sort")),
		StatusID: int64(max(c.QueryInt("status"), 0)),
	}
}

func (h webUI) newForm(c *fiber.Ctx) error {
	return h.renderForm(c, fiber.StatusOK, "New contact", contacts.ContactInput{}, nil, nil)
}

func (h webUI) editForm(c *fiber.Ctx) error {
	ct, err := h.loadContact(c)
	if err != nil {
		return err
	}
	return h.renderForm(c, fiber.StatusOK, "Edit contact", contacts.InputFromContact(ct), nil, nil)
}

func (h webUI) renderForm(c *fiber.Ctx, status int, title string, in contacts.ContactInput, errs map[string][]string, flashes []flash) error {
	statuses, err := h.service.ListStatuses(c.UserContext())
	if err != nil {
		return err
	}
	data := h.page(c, title)
	data.Flashes = append(data.Flashes, flashes...)
	return render(c, status, "form", formPage{
		pageData: data,
		Input:    in,
		Errors:   errs,
		Statuses: statuses,
	})
}

func formInput(c *fiber.Ctx) contacts.ContactInput {
	statusID, _ := strconv.ParseInt(c.FormValue("status"), 10, 64)
	return contacts.ContactInput{
		FirstName:   c.FormValue("first_name"),
		LastName:    c.FormValue("last_name"),
		PhoneNumber: c.FormValue("phone_number"),
		Email:       c.FormValue("email"),
		City:        c.FormValue("city"),
		StatusID:    statusID,
	}
}

func (h webUI) create(c *fiber.Ctx) error {
	in := formInput(c)
	if _, err := h.service.CreateContact(c.UserContext(), in); err != nil {
		return h.formFailed(c, "New contact", in, err)
	}
	h.flash(c, "success", "Contact created successfully!")
	return c.Redirect("/", fiber.StatusFound)
}

func (h webUI) update(c *fiber.Ctx) error {
	ct, err := h.loadContact(c)
	if err != nil {
		return err
	}
	in := formInput(c)
	in.DateAdded = &ct.DateAdded
	if _, err := h.service.UpdateContact(c.UserContext(), ct.ID, in); err != nil {
		return h.formFailed(c, "Edit contact", in, err)
	}
	h.flash(c, "success", "Contact updated successfully!")
	return c.Redirect("/", fiber.StatusFound)
}

func (h webUI) formFailed(c *fiber.Ctx, title string, in contacts.ContactInput, err error) error {
	var verr *contacts.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return h.renderForm(c, fiber.StatusOK, title, in, verr.Fields(),
		[]flash{{Level: "error", Text: "Please correct the errors below."}})
}

func (h webUI) confirmDelete(c *fiber.Ctx) error {
	ct, err := h.loadContact(c)
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "delete", deletePage{
		pageData: h.page(c, "Delete contact"),
		Contact:  ct,
	})
}

func (h webUI) delete(c *fiber.Ctx) error {
	ct, err := h.loadContact(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteContact(c.UserContext(), ct.ID); err != nil {
		return err
	}
	h.flash(c, "success", "Contact deleted successfully!")
	return c.Redirect("/", fiber.StatusFound)
}

func (h webUI) loadContact(c *fiber.Ctx) (contacts.Contact, error) {
	id, ok := pathID(c)
	if !ok {
		return contacts.Contact{}, fiber.ErrNotFound
	}
	ct, err := h.service.GetContact(c.UserContext(), id)
	if errors.Is(err, contacts.ErrNotFound) {
		return contacts.Contact{}, fiber.ErrNotFound
	}
	return ct, err
}

func (h webUI) importForm(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "import", importPage{pageData: h.page(c, importTitle)})
}

func (h webUI) importCSV(c *fiber.Ctx) error {
	rejected := func(msg string) error {
		return render(c, fiber.StatusOK, "import", importPage{
			pageData:    h.page(c, importTitle),
			UploadError: msg,
		})
	}

	header, err := c.FormFile("csv_file")
	if err != nil {
		return rejected("This field is required.")
	}
	if err := contacts.CheckUpload(header.Filename, header.Size, h.importer.MaxSize()); err != nil {
		return rejected(err.Error())
	}

	file, err := header.Open()
	if err != nil {
		return rejected(fmt.Sprintf("Error processing CSV file: %v", err))
	}
	defer file.Close()

	summary, err := h.importer.Import(c.UserContext(), file)
	if err != nil {
		return rejected(fmt.Sprintf("Error processing CSV file: %v", err))
	}

	if !summary.MadeProgress() {
		data := h.page(c, importTitle)
		if msg := summary.FailureMessage(); msg != "" {
			data.Flashes = append(data.Flashes, flash{Level: "warning", Text: msg})
		}
		return render(c, fiber.StatusOK, "import", importPage{pageData: data})
	}

	h.flash(c, "success", summary.SuccessMessage())
	if msg := summary.FailureMessage(); msg != "" {
		h.flash(c, "warning", msg)
	}
	return c.Redirect("/", fiber.StatusFound)
}

func (h webUI) export(c *fiber.Ctx) error {
	list, err := h.service.ExportContacts(c.UserContext(), queryFilter(c))
	if err != nil {
		return err
	}

	switch strings.ToLower(c.Query("format", "xlsx")) {
	case "csv":
		c.Attachment("contacts.csv")
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return contacts.WriteCSV(c, list)
	case "xlsx":
		c.Attachment("contacts.xlsx")
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		return contacts.WriteXLSX(c, list)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "format must be csv or xlsx")
	}
}
