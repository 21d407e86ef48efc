package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/ports"

	"github.com/xuri/excelize/v2"
)

// FileSource reads CSV and XLSX files. The request path may be a glob;
// each matching file becomes its own batch with a "filename" identifier.
type FileSource struct {
	requiredIdentifiers []string
	sheetName           string
}

// NewFileSource creates a file source. Excel reads always use sheetName
// (default "Sheet1").
func NewFileSource(requiredIdentifiers ...string) *FileSource {
	return &FileSource{requiredIdentifiers: requiredIdentifiers, sheetName: "Sheet1"}
}

func (s *FileSource) Kind() batch.SourceKind { return batch.SourcePath }

func (s *FileSource) RequiredIdentifiers() []string { return s.requiredIdentifiers }

func (s *FileSource) Read(ctx context.Context, req batch.Request) ([]ports.ResolvedData, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, core.NewBatchSpecError("path request carries no path")
	}

	paths, err := filepath.Glob(req.Path)
	if err != nil {
		return nil, core.NewBatchSpecError(fmt.Sprintf("bad path pattern %q: %v", req.Path, err))
	}
	if len(paths) == 0 {
		return nil, core.NewDataUnavailableError(req.Path, fmt.Errorf("no files match"))
	}

	resolved := make([]ports.ResolvedData, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := s.readFile(path)
		if err != nil {
			return nil, core.NewDataUnavailableError(path, err)
		}
		resolved = append(resolved, ports.ResolvedData{
			Table:       table,
			Identifiers: map[string]string{"filename": filepath.Base(path)},
		})
	}
	return resolved, nil
}

func (s *FileSource) readFile(path string) (batch.Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return s.readCSV(path)
	case ".xlsx":
		return s.readExcel(path)
	default:
		return batch.Table{}, fmt.Errorf("unsupported file type %s", ext)
	}
}

func (s *FileSource) readCSV(path string) (batch.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return batch.Table{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return batch.Table{}, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 1 {
		return batch.Table{}, fmt.Errorf("file has no header row")
	}

	log.Printf("[FileSource] read %s (%d rows)", filepath.Base(path), len(records)-1)
	return tableFromRows(records), nil
}

func (s *FileSource) readExcel(path string) (batch.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return batch.Table{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheetName)
	if err != nil {
		return batch.Table{}, fmt.Errorf("failed to read sheet %s: %w", s.sheetName, err)
	}
	if len(rows) < 1 {
		return batch.Table{}, fmt.Errorf("sheet %s has no header row", s.sheetName)
	}

	log.Printf("[FileSource] read %s sheet %s (%d rows)", filepath.Base(path), s.sheetName, len(rows)-1)
	return tableFromRows(rows), nil
}

// tableFromRows converts header + string records into a table, coercing
// numeric-looking cells to float64 and empty cells to nil.
func tableFromRows(records [][]string) batch.Table {
	header := records[0]
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	rows := make([][]interface{}, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]interface{}, len(columns))
		for i := range columns {
			if i >= len(record) {
				continue
			}
			row[i] = coerceCell(record[i])
		}
		rows = append(rows, row)
	}
	return batch.Table{Columns: columns, Rows: rows}
}

func coerceCell(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}
