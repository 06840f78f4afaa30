package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

// ErrUnsupportedFormat is returned for dataset files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Dataset is a cleaned raw dataset ready for evaluation.
type Dataset struct {
	Source  string                      `json:"source"`
	Assets  []equilibrium.AssetSnapshot `json:"assets"`
	Dropped int                         `json:"dropped"`
}

// Read loads a raw dataset, choosing the reader by file extension. sheet is
// only used for spreadsheets; empty selects the first sheet.
func Read(path, sheet string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadCSV loads a raw CSV dataset. Rows lacking a symbol, price, market cap,
// or volume are dropped and counted.
func ReadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := parseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Source = path
	logLoaded(ds)
	return ds, nil
}

func parseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	cells, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	h := mapColumns(cells)
	if missing := h.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("CSV missing required columns %v", missing)
	}

	ds := &Dataset{}
	for position := 1; ; position++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", position, err)
		}
		ds.add(h, row, position)
	}
	return ds, nil
}

// ReadXLSX loads a raw dataset from a spreadsheet sheet with the same column
// rules as ReadCSV.
func ReadXLSX(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", path, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}

	h := mapColumns(rows[0])
	if missing := h.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%s: sheet %q missing required columns %v", path, sheet, missing)
	}

	ds := &Dataset{Source: path}
	for i, row := range rows[1:] {
		ds.add(h, row, i+1)
	}
	logLoaded(ds)
	return ds, nil
}

func (ds *Dataset) add(h header, row []string, position int) {
	if blank(row) {
		return
	}
	s, ok := h.parseRow(row, position)
	if !ok {
		ds.Dropped++
		return
	}
	ds.Assets = append(ds.Assets, s)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func logLoaded(ds *Dataset) {
	event := log.Info()
	if ds.Dropped > 0 {
		event = log.Warn()
	}
	event.Str("source", ds.Source).
		Int("assets", len(ds.Assets)).
		Int("dropped", ds.Dropped).
		Msg("Loaded raw dataset")
}
