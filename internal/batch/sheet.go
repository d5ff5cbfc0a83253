// Package batch reads company rows from spreadsheets and writes run reports
// for bulk slide generation.
package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"portfolio-slides/slide-service/internal/onboarding"
	"portfolio-slides/slide-service/internal/slides"
)

// ErrNoRows is returned for a sheet without data rows
var ErrNoRows = errors.New("spreadsheet has no company rows")

// columns holding image paths rather than company fields
const (
	ColumnHeadshot = "headshot"
	ColumnLogo     = "logo"
)

// Row is one company read from a spreadsheet
type Row struct {
	// Line is the 1-based sheet row
	Line     int
	Company  slides.CompanyRecord
	Headshot string
	Logo     string
}

// normalizeHeader turns "Co-Investors" or "Investment Round" into a record field key
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ReadCompanies reads the first sheet. The header row names CompanyRecord
// fields; rows without a name are skipped.
func ReadCompanies(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// ReadCompaniesCSV reads the same layout from comma-separated text
func ReadCompaniesCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]Row, error) {
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row := Row{Line: i + 2}
		fields := make(map[string]any, len(cells))
		for col, value := range cells {
			if col >= len(header) || header[col] == "" || strings.TrimSpace(value) == "" {
				continue
			}
			switch header[col] {
			case ColumnHeadshot:
				row.Headshot = strings.TrimSpace(value)
			case ColumnLogo:
				row.Logo = strings.TrimSpace(value)
			default:
				fields[header[col]] = value
			}
		}
		if name, _ := fields["name"].(string); strings.TrimSpace(name) == "" {
			continue
		}

		payload, err := json.Marshal(map[string]any{"company_data": fields})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Line, err)
		}
		req, err := onboarding.ParsePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Line, err)
		}
		row.Company = req.Company
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// Outcome is the result of generating one row's slide
type Outcome struct {
	Line     int
	Company  string
	File     string
	Degraded []string
	Err      error
}

var reportColumns = []string{"Row", "Company", "File", "Status", "Degraded Steps", "Error"}

// WriteReport writes a one-sheet workbook summarizing a batch run
func WriteReport(w io.Writer, outcomes []Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Slides"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range reportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for r, o := range outcomes {
		status, errText := "ok", ""
		if o.Err != nil {
			status, errText = "failed", o.Err.Error()
		} else if len(o.Degraded) > 0 {
			status = "degraded"
		}
		values := []any{o.Line, o.Company, o.File, status, strings.Join(o.Degraded, ", "), errText}
		for c, v := range values {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	for i := range reportColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 22)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
