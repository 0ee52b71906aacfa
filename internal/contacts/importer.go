package contacts

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxImportSize   int64 = 5 << 20
	DefaultMaxListedErrors       = 5
)

// ImportColumns is the header expected in an import file, in export order.
var ImportColumns = []string{"first_name", "last_name", "phone_number", "email", "city", "status"}

var (
	ErrNotCSV       = errors.New("Please upload a valid CSV file.")
	ErrFileTooLarge = errors.New("File size should not exceed 5MB.")
	ErrNotUTF8      = errors.New("file is not valid UTF-8 text")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CheckUpload rejects uploads that are not named *.csv or exceed maxSize.
func CheckUpload(filename string, size, maxSize int64) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return ErrNotCSV
	}
	if maxSize > 0 && size > maxSize {
		return ErrFileTooLarge
	}
	return nil
}

// ImportSummary is the outcome of one import run.
type ImportSummary struct {
	BatchID  string
	Imported int
	Failed   int
	// Errors holds one "Row N: message" entry per failed row, in file order.
	Errors []string

	maxListed int
}

// MadeProgress reports whether at least one row was stored.
func (s ImportSummary) MadeProgress() bool { return s.Imported > 0 }

// ListedErrors returns at most the configured number of row errors.
func (s ImportSummary) ListedErrors() []string {
	limit := s.maxListed
	if limit <= 0 {
		limit = DefaultMaxListedErrors
	}
	if len(s.Errors) <= limit {
		return s.Errors
	}
	return s.Errors[:limit]
}

// Truncated reports whether ListedErrors omits some row errors.
func (s ImportSummary) Truncated() bool {
	return len(s.ListedErrors()) < len(s.Errors)
}

// SuccessMessage is empty when no row was imported.
func (s ImportSummary) SuccessMessage() string {
	if s.Imported == 0 {
		return ""
	}
	return fmt.Sprintf("Successfully imported %d contacts.", s.Imported)
}

// FailureMessage is empty when no row failed.
func (s ImportSummary) FailureMessage() string {
	if s.Failed == 0 {
		return ""
	}
	listed := s.ListedErrors()
	msg := fmt.Sprintf("Failed to import %d contacts. ", s.Failed)
	if !s.Truncated() {
		return msg + "Errors: " + strings.Join(listed, "; ")
	}
	return fmt.Sprintf("%sFirst %d errors: %s (and %d more)",
		msg, len(listed), strings.Join(listed, "; "), len(s.Errors)-len(listed))
}

// Importer creates contacts from CSV files, one row at a time.
type Importer struct {
	service   *Service
	logger    *zap.Logger
	maxSize   int64
	maxListed int
}

// NewImporter creates an Importer. Zero limits fall back to the defaults.
func NewImporter(service *Service, logger *zap.Logger, maxSize int64, maxListed int) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxImportSize
	}
	if maxListed <= 0 {
		maxListed = DefaultMaxListedErrors
	}
	return &Importer{service: service, logger: logger, maxSize: maxSize, maxListed: maxListed}
}

// MaxSize is the largest accepted file in bytes.
func (im *Importer) MaxSize() int64 { return im.maxSize }

// Import reads the whole file, then stores each data row independently.
// A returned error means the file was rejected and no row was processed;
// row failures are reported in the summary instead.
func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	summary := ImportSummary{BatchID: uuid.NewString(), maxListed: im.maxListed}
	log := im.logger.With(zap.String("batch_id", summary.BatchID))

	records, err := im.readRecords(r)
	if err != nil {
		log.Warn("import rejected", zap.Error(err))
		return summary, err
	}
	if len(records) == 0 {
		return summary, nil
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		if _, dup := header[strings.TrimSpace(name)]; !dup {
			header[strings.TrimSpace(name)] = i
		}
	}

	for i, record := range records[1:] {
		rowNum := i + 2
		if err := im.importRow(ctx, header, record); err != nil {
			log.Warn("row rejected", zap.Int("row", rowNum), zap.Error(err))
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		summary.Imported++
	}

	log.Info("import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (im *Importer) readRecords(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(io.LimitReader(r, im.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > im.maxSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func (im *Importer) importRow(ctx context.Context, header map[string]int, record []string) error {
	field := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	statusName := field("status")
	if statusName == "" {
		return errors.New("Status is required")
	}
	status, _, err := im.service.EnsureStatus(ctx, statusName, "Status: "+statusName)
	if err != nil {
		return err
	}

	_, err = im.service.CreateContact(ctx, ContactInput{
		FirstName:   field("first_name"),
		LastName:    field("last_name"),
		PhoneNumber: field("phone_number"),
		Email:       strings.ToLower(field("email")),
		City:        field("city"),
		StatusID:    status.ID,
	})
	return err
}
