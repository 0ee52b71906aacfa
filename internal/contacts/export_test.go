package contacts_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/i474232898/contact-manager/internal/contacts"
)

func exportFixture() []contacts.Contact {
	return []contacts.Contact{{
		ID:          1,
		FirstName:   "John",
		LastName:    "Doe",
		PhoneNumber: "+48123456789",
		Email:       "john@x.com",
		City:        "Warsaw",
		StatusName:  "new",
		DateAdded:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, contacts.WriteCSV(&buf, exportFixture()))

	assert.Equal(t,
		"first_name,last_name,phone_number,email,city,status,date_added\n"+
			"John,Doe,+48123456789,john@x.com,Warsaw,new,2024-05-01T12:00:00Z\n",
		buf.String())
}

func TestWriteCSV_CanBeImportedAgain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, contacts.WriteCSV(&buf, exportFixture()))

	im, _ := newImporter()
	summary, err := im.Import(context.Background(), strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported, summary.Errors)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, contacts.WriteXLSX(&buf, exportFixture()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Contacts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, contacts.ExportColumns, rows[0])
	assert.Equal(t, []string{"John", "Doe", "+48123456789", "john@x.com", "Warsaw", "new", "2024-05-01T12:00:00Z"}, rows[1])
}
