package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

type formField struct {
	Name   string
	Label  string
	Value  string
	Errors []string
}

var templateFuncs = template.FuncMap{
	"field": func(name, label, value string, errs map[string][]string) formField {
		return formField{Name: name, Label: label, Value: value, Errors: errs[name]}
	},
}

var pages = map[string]*template.Template{
	"list":   parsePage("list.html"),
	"form":   parsePage("form.html"),
	"delete": parsePage("delete.html"),
	"import": parsePage("import.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).
		ParseFS(templateFiles, "templates/layout.html", "templates/"+name))
}

// flash is a one-shot message shown on the next rendered page.
type flash struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Class maps the level onto a Bootstrap alert class.
func (f flash) Class() string {
	if f.Level == "error" {
		return "danger"
	}
	return f.Level
}

const flashKey = "flashes"

// addFlash queues a message in the session. Messages are stored as a JSON
// string so the session storage never has to encode custom types.
func addFlash(c *fiber.Ctx, store *session.Store, level, text string) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	flashes := readFlashes(sess)
	flashes = append(flashes, flash{Level: level, Text: text})
	raw, err := json.Marshal(flashes)
	if err != nil {
		return err
	}
	sess.Set(flashKey, string(raw))
	return sess.Save()
}

// popFlashes returns and clears queued messages.
func popFlashes(c *fiber.Ctx, store *session.Store) []flash {
	sess, err := store.Get(c)
	if err != nil {
		return nil
	}
	flashes := readFlashes(sess)
	if len(flashes) == 0 {
		return nil
	}
	sess.Delete(flashKey)
	_ = sess.Save()
	return flashes
}

func readFlashes(sess *session.Session) []flash {
	raw, ok := sess.Get(flashKey).(string)
	if !ok || raw == "" {
		return nil
	}
	var flashes []flash
	if err := json.Unmarshal([]byte(raw), &flashes); err != nil {
		return nil
	}
	return flashes
}

// render executes page into a buffer so a template error never leaves a
// half-written response. data must embed pageData.
func render(c *fiber.Ctx, status int, page string, data any) error {
	tmpl, ok := pages[page]
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "unknown page "+page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

// pageData is shared by every page.
type pageData struct {
	Title   string
	Flashes []flash
}
