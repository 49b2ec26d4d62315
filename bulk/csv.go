package bulk

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

// csvColumns is the tabular column set, shared by import and export so
// collaborators round-trip losslessly.
var csvColumns = []string{"name", "type", "country", "genres", "email", "website"}

// Warning is a non-fatal issue encountered while parsing an import file.
// Row is 1-indexed with the header as row 1.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report is the outcome of a bulk import: what was read, what was written,
// and everything that went wrong, so callers can report "N of M imported"
// accurately.
type Report struct {
	Encoding string           `json:"encoding,omitempty"`
	Warnings []Warning        `json:"warnings,omitempty"`
	Result   store.BulkResult `json:"result"`
}

// ImportCSV reads a header-mapped CSV file (any supported encoding) and
// writes the rows through the facade's validation gate. Unparseable rows
// become warnings; validation and constraint failures surface through the
// report's result per the chosen mode.
func ImportCSV(ctx context.Context, facade *store.Facade, r io.Reader, mode store.BulkMode) (Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Report{}, fmt.Errorf("bulk: reading input: %w", err)
	}
	decoded, encodingName, err := DecodeText(data)
	if err != nil {
		return Report{}, fmt.Errorf("bulk: decoding input: %w", err)
	}
	report := Report{Encoding: encodingName}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return report, fmt.Errorf("bulk: empty file, no header row")
		}
		return report, fmt.Errorf("bulk: reading header row: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["name"]; !ok {
		return report, fmt.Errorf("bulk: header has no name column")
	}

	var records []contact.Contact
	row := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			report.Warnings = append(report.Warnings, Warning{Row: row, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		records = append(records, rowToContact(columns, fields))
	}

	report.Result, err = facade.BulkAdd(ctx, records, mode)
	return report, err
}

func rowToContact(columns map[string]int, fields []string) contact.Contact {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}
	return contact.Contact{
		ID:      contact.NewID(),
		Name:    cell("name"),
		Type:    contact.Type(strings.ToLower(cell("type"))),
		Country: cell("country"),
		Genres:  splitGenres(cell("genres")),
		Email:   cell("email"),
		Website: cell("website"),
	}
}

func splitGenres(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	genres := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			genres = append(genres, part)
		}
	}
	return genres
}

// ExportCSV writes every contact in the shared column set.
func ExportCSV(ctx context.Context, facade *store.Facade, w io.Writer) error {
	contacts, err := facade.GetAll(ctx)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("bulk: writing header: %w", err)
	}
	for _, c := range contacts {
		record := []string{
			c.Name,
			string(c.Type),
			c.Country,
			strings.Join(c.Genres, ", "),
			c.Email,
			c.Website,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("bulk: writing row for %s: %w", c.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
