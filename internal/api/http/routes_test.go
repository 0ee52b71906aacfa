package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/contact-manager/internal/cache"
	"github.com/i474232898/contact-manager/internal/contacts"
	"github.com/i474232898/contact-manager/internal/store"
	"github.com/i474232898/contact-manager/internal/weather"
	"github.com/i474232898/contact-manager/internal/weather/providers"
)

type testEnv struct {
	app       *fiber.App
	contacts  *contacts.Service
	status    contacts.Status
	geoHits   *int32
	meteoHits *int32
}

// newTestEnv wires the real services against an in-memory store and stub
// upstreams: "Warsaw" geocodes with weather, "Dryland" geocodes but has no
// weather, anything else is unknown. opts adjust the Fiber config.
func newTestEnv(t *testing.T, opts ...func(*fiber.Config)) *testEnv {
	t.Helper()
	var geoHits, meteoHits int32

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&geoHits, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("q") {
		case "Warsaw", "New York":
			_, _ = w.Write([]byte(`[{"lat":"52.2319581","lon":"21.0067249"}]`))
		case "Dryland":
			_, _ = w.Write([]byte(`[{"lat":"1.5","lon":"2.5"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(geo.Close)

	meteo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&meteoHits, 1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("latitude") == "1.5" {
			_, _ = w.Write([]byte(`{"hourly": {"relativehumidity_2m": [50]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"current_weather": {"temperature": 18.4, "windspeed": 11.2, "weathercode": 3},
			"hourly": {"relativehumidity_2m": [81, 79]}}`))
	}))
	t.Cleanup(meteo.Close)

	client := providers.NewHTTPClient(5 * time.Second)
	weatherSvc := weather.NewService(
		cache.NewMemoryCache(),
		providers.NewNominatimGeocoder(client, geo.URL, "ContactsApp/1.0", 0),
		providers.NewOpenMeteoProvider(client, meteo.URL),
		zap.NewNop(),
		weather.Options{},
	)

	contactSvc := contacts.NewService(store.NewMemoryStore(), zap.NewNop())
	st, err := contactSvc.CreateStatus(context.Background(), "new", "New contact")
	require.NoError(t, err)

	cfg := AppConfig(zap.NewNop())
	for _, opt := range opts {
		opt(&cfg)
	}
	app := fiber.New(cfg)
	app.Use(RequestID())
	app.Use(RequestLogger(zap.NewNop()))
	RegisterRoutes(app, Dependencies{
		Contacts: contactSvc,
		Importer: contacts.NewImporter(contactSvc, zap.NewNop(), 0, 0),
		Weather:  weatherSvc,
		Logger:   zap.NewNop(),
	})

	return &testEnv{app: app, contacts: contactSvc, status: st, geoHits: &geoHits, meteoHits: &meteoHits}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) seedContact(t *testing.T, first, phone, email string) contacts.Contact {
	t.Helper()
	c, err := e.contacts.CreateContact(context.Background(), contacts.ContactInput{
		FirstName: first, LastName: "Doe", PhoneNumber: phone, Email: email, City: "Warsaw", StatusID: e.status.ID,
	})
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWeather_Success(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/weather/Warsaw/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "Warsaw", body["city"])
	assert.Equal(t, map[string]any{"latitude": 52.2319581, "longitude": 21.0067249}, body["coordinates"])
	assert.Equal(t, map[string]any{
		"temperature":      18.4,
		"temperature_unit": "°C",
		"humidity":         81.0,
		"humidity_unit":    "%",
		"wind_speed":       11.2,
		"wind_speed_unit":  "km/h",
	}, body["weather"])
}

func TestWeather_SecondLookupIsCached(t *testing.T) {
	env := newTestEnv(t)

	for _, city := range []string{"Warsaw", "Warsaw", "WARSAW"} {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, "/weather/"+city, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(env.geoHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(env.meteoHits))
}

func TestWeather_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/weather/", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "City parameter is required", body["error"])
	assert.Zero(t, atomic.LoadInt32(env.geoHits))

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/weather/Atlantis", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, map[string]any{"error": "City not found", "city": "Atlantis"}, body)
	assert.Zero(t, atomic.LoadInt32(env.meteoHits))

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/weather/Dryland", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, map[string]any{"error": "Weather data not available", "city": "Dryland"}, body)
}

func TestWeather_EscapedCity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/weather/New%20York", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "New York", body["city"])
}

func TestContactsAPI_CRUD(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, jsonRequest(http.MethodPost, "/api/contacts/",
		`{"first_name":"john","last_name":"doe","phone_number":"+48123456789","email":"John@X.com","city":"Warsaw","status":1}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	decode(t, resp, &created)
	assert.Equal(t, "John", created["first_name"])
	assert.Equal(t, "john@x.com", created["email"])
	assert.Equal(t, float64(1), created["status"])
	assert.Equal(t, "new", created["status_name"])
	for _, key := range []string{"id", "date_added", "created_at", "updated_at"} {
		assert.Contains(t, created, key)
	}

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/contacts/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, resp, &list)
	require.Len(t, list, 1)
	keys := make([]string, 0, len(list[0]))
	for k := range list[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "first_name", "last_name", "city", "status_name", "date_added"}, keys)

	resp = env.do(t, jsonRequest(http.MethodPatch, "/api/contacts/1/", `{"city":"Krakow"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var patched map[string]any
	decode(t, resp, &patched)
	assert.Equal(t, "Krakow", patched["city"])
	assert.Equal(t, "John", patched["first_name"])

	resp = env.do(t, jsonRequest(http.MethodPut, "/api/contacts/1/",
		`{"first_name":"Jan","last_name":"Kowalski","phone_number":"+48123456789","email":"jan@x.com","city":"Gdansk","status":1}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/contacts/1/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail map[string]any
	decode(t, resp, &detail)
	assert.Equal(t, "Kowalski", detail["last_name"])

	resp = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/contacts/1/", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/contacts/1/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var nf map[string]any
	decode(t, resp, &nf)
	assert.Equal(t, "Not found.", nf["detail"])
}

func TestContactsAPI_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "John", "+48123456789", "john@x.com")

	resp := env.do(t, jsonRequest(http.MethodPost, "/api/contacts/",
		`{"first_name":"Jane","last_name":"Doe","phone_number":"+48123456789","email":"JOHN@x.com","city":"Warsaw","status":1}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string][]string
	decode(t, resp, &body)
	assert.Equal(t, []string{contacts.MsgDuplicatePhone}, body["phone_number"])
	assert.Equal(t, []string{contacts.MsgDuplicateEmail}, body["email"])

	resp = env.do(t, jsonRequest(http.MethodPost, "/api/contacts/",
		`{"first_name":"J4ne","last_name":"Doe","phone_number":"12","email":"nope","city":"Warsaw","status":99}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &body)
	assert.Contains(t, body, "first_name")
	assert.Contains(t, body, "phone_number")
	assert.Contains(t, body, "email")
	assert.Equal(t, []string{`Invalid pk "99" - object does not exist.`}, body["status"])

	resp = env.do(t, jsonRequest(http.MethodPost, "/api/contacts/", `{"first_name":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContactsAPI_ListFilters(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "Anna", "+48111111111", "anna@x.com")
	env.seedContact(t, "Bob", "+48222222222", "bob@x.com")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/contacts/?search=ANNA", nil))
	var list []map[string]any
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Anna", list[0]["first_name"])

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/contacts/?sort=-first_name", nil))
	decode(t, resp, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Bob", list[0]["first_name"])
}

func TestStatusesAPI(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/statuses/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, resp, &list)
	assert.Equal(t, []map[string]any{{"id": float64(1), "name": "new", "description": "New contact"}}, list)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/statuses/5/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/api/statuses/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWeb_ListPage(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "Anna", "+48111111111", "anna@x.com")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/?search=anna&sort=bogus", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body := readBody(t, resp)
	assert.Contains(t, body, "anna@x.com")
	assert.Contains(t, body, "1 contacts")
}

func TestWeb_CreateContactFlashesAndRedirects(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"first_name":   {"John"},
		"last_name":    {"Doe"},
		"phone_number": {"+48123456789"},
		"email":        {"john@x.com"},
		"city":         {"Warsaw"},
		"status":       {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/contact/new/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := env.do(t, req)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	body := readBody(t, env.do(t, req))
	assert.Contains(t, body, "Contact created successfully!")
	assert.Contains(t, body, "john@x.com")
}

func postForm(t *testing.T, env *testEnv, target string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return env.do(t, req)
}

func TestWeb_CreatedContactsKeepTheirValues(t *testing.T) {
	env := newTestEnv(t)

	resp := postForm(t, env, "/contact/new/", url.Values{
		"first_name": {"Anna"}, "last_name": {"Nowak"}, "phone_number": {"+48111111111"},
		"email": {"a@x.com"}, "city": {"Warsaw"}, "status": {"1"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = postForm(t, env, "/contact/new/", url.Values{
		"first_name": {"Bartek"}, "last_name": {"Zielinski"}, "phone_number": {"+48222222000"},
		"email": {"b00@x.com"}, "city": {"Zzzzzz00"}, "status": {"1"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	first, err := env.contacts.GetContact(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Anna", first.FirstName)
	assert.Equal(t, "Nowak", first.LastName)
	assert.Equal(t, "+48111111111", first.PhoneNumber)
	assert.Equal(t, "a@x.com", first.Email)
	assert.Equal(t, "Warsaw", first.City)

	second, err := env.contacts.GetContact(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "b00@x.com", second.Email)
	assert.Equal(t, "Zzzzzz00", second.City)

	resp = postForm(t, env, "/contact/1/edit/", url.Values{
		"first_name": {"Anna"}, "last_name": {"Nowak"}, "phone_number": {"+48111111111"},
		"email": {"anna@x.com"}, "city": {"Gdansk"}, "status": {"1"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	second, err = env.contacts.GetContact(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "+48222222000", second.PhoneNumber)
	assert.Equal(t, "b00@x.com", second.Email)
	assert.Equal(t, "Zzzzzz00", second.City)
}

func TestWeb_CreateContactInvalid(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"first_name": {"J0hn"}, "status": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/contact/new/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := env.do(t, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Please correct the errors below.")
	assert.Contains(t, body, "Only letters, spaces, hyphens, and apostrophes allowed")
}

func TestWeb_EditAndDelete(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedContact(t, "Anna", "+48111111111", "anna@x.com")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/contact/1/edit/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `value="anna@x.com"`)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/contact/1/delete/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Anna Doe")

	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/contact/1/delete/", nil))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	_, err := env.contacts.GetContact(context.Background(), c.ID)
	assert.ErrorIs(t, err, contacts.ErrNotFound)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/contact/1/edit/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("csv_file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/import-csv/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestWeb_ImportCSV(t *testing.T) {
	env := newTestEnv(t)

	data := "first_name,last_name,phone_number,email,city,status\n" +
		"John,Doe,+48123456789,john@x.com,Warsaw,new\n" +
		"Jane,Smith,+48987654321,jane@x.com,Krakow,lead\n"
	resp := env.do(t, uploadRequest(t, "contacts.csv", data))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	page, err := env.contacts.ListContacts(context.Background(), contacts.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	statuses, err := env.contacts.ListStatuses(context.Background())
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestWeb_ImportCSVRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, uploadRequest(t, "contacts.txt", "x"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Please upload a valid CSV file.")

	data := "first_name,last_name,phone_number,email,city,status\n" +
		"John,Doe,+48123456789,john@x.com,Warsaw,\n"
	resp = env.do(t, uploadRequest(t, "contacts.csv", data))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Failed to import 1 contacts.")
	assert.Contains(t, body, "Row 2: Status is required")
}

func TestWeb_ImportCSVOverBodyLimitRendersForm(t *testing.T) {
	env := newTestEnv(t, func(cfg *fiber.Config) { cfg.BodyLimit = 1024 })

	resp := env.do(t, uploadRequest(t, "contacts.csv", strings.Repeat("x", 4096)))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, readBody(t, resp), "File size should not exceed 5MB.")

	page, err := env.contacts.ListContacts(context.Background(), contacts.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestWeb_Export(t *testing.T) {
	env := newTestEnv(t)
	env.seedContact(t, "Anna", "+48111111111", "anna@x.com")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/export/?format=csv", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "contacts.csv")
	body := readBody(t, resp)
	assert.True(t, strings.HasPrefix(body, "first_name,last_name,phone_number,email,city,status,date_added\n"))
	assert.Contains(t, body, "Anna,Doe,+48111111111,anna@x.com,Warsaw,new,")

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/export/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "contacts.xlsx")

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/export/?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, true, body["error"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}
