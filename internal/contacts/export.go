package contacts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Contacts"

// ExportColumns are the ImportColumns plus date_added, so an export can be
// imported again unchanged.
var ExportColumns = append(append([]string{}, ImportColumns...), "date_added")

// ExportContacts returns every contact matching f, ignoring paging.
func (s *Service) ExportContacts(ctx context.Context, f Filter) ([]Contact, error) {
	f.Limit, f.Offset = 0, 0
	page, err := s.ListContacts(ctx, f)
	if err != nil {
		return nil, err
	}
	return page.Contacts, nil
}

func exportRow(c Contact) []string {
	return []string{
		c.FirstName,
		c.LastName,
		c.PhoneNumber,
		c.Email,
		c.City,
		c.StatusName,
		c.DateAdded.UTC().Format(time.RFC3339),
	}
}

// WriteCSV writes a header row followed by one row per contact.
func WriteCSV(w io.Writer, list []Contact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range list {
		if err := cw.Write(exportRow(c)); err != nil {
			return fmt.Errorf("write contact %d: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same layout as WriteCSV into a single-sheet workbook
// with a bold, frozen header row.
func WriteXLSX(w io.Writer, list []Contact) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(ExportColumns))
	for i, col := range ExportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(ExportColumns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, c := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		fields := exportRow(c)
		row := make([]any, len(fields))
		for j, v := range fields {
			row[j] = v
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write contact %d: %w", c.ID, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
