package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data record from a tabular file, keyed by column header.
// Number is the 1-based position within the file, the header row excluded.
type Row struct {
	Number int
	Fields map[string]string
}

// Value returns the trimmed cell value for the first header that is present.
func (r Row) Value(headers ...string) string {
	for _, h := range headers {
		if v, ok := r.Fields[h]; ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// ReadTable parses an uploaded spreadsheet (xlsx) or CSV file into rows keyed
// by the header line. Rows shorter than the header are padded with empty
// strings; longer rows are truncated.
func ReadTable(filename string, data []byte) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(data)
	case ".csv":
		return readCSV(data)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

func readXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty file: no header row found")
	}

	headers := trimAll(raw[0])
	return buildRows(headers, raw[1:]), nil
}

func readCSV(data []byte) ([]Row, error) {
	decoded, err := decodeToUTF8(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("read header row: %w", err)
	}
	headers = trimAll(headers)

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, record)
	}

	return buildRows(headers, records), nil
}

func buildRows(headers []string, records [][]string) []Row {
	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		fields := make(map[string]string, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(record) {
				fields[h] = record[j]
			} else {
				fields[h] = ""
			}
		}
		rows = append(rows, Row{Number: i + 1, Fields: fields})
	}
	return rows
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
