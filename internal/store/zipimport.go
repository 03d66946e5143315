package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrMissingColumn = errors.New("missing column")

// header aliases seen in public ZIP code datasets
var columnAliases = map[string][]string{
	"zip":   {"zip", "zipcode", "zip_code", "postal_code", "zcta"},
	"lat":   {"lat", "latitude"},
	"lon":   {"lon", "lng", "long", "longitude"},
	"city":  {"city", "primary_city", "place"},
	"state": {"state", "state_id", "state_code", "state_abbr"},
}

// NormalizeZip validates a five-digit ZIP code, accepting and dropping a
// ZIP+4 suffix.
func NormalizeZip(raw string) (string, bool) {
	zip := strings.TrimSpace(raw)
	if i := strings.IndexByte(zip, '-'); i >= 0 {
		if !allDigits(zip[i+1:]) || len(zip[i+1:]) != 4 {
			return "", false
		}
		zip = zip[:i]
	}
	if len(zip) != 5 || !allDigits(zip) {
		return "", false
	}
	return zip, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ReadZipFile reads a ZIP code table from a .csv or .xlsx file
func ReadZipFile(path string) ([]Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening zip table: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadZipCSV(f)
	case ".xlsx":
		return ReadZipXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported zip table format %q", filepath.Ext(path))
	}
}

// ReadZipCSV parses a ZIP code table with a header row
func ReadZipCSV(r io.Reader) ([]Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return parseZipRows(rows)
}

// ReadZipXLSX parses the first sheet of a spreadsheet with a header row
func ReadZipXLSX(r io.Reader) ([]Location, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return parseZipRows(rows)
}

func parseZipRows(rows [][]string) ([]Location, error) {
	if len(rows) == 0 {
		return nil, errors.New("zip table is empty")
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	locs := make([]Location, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if cell("zip") == "" {
			continue
		}
		zip, ok := NormalizeZip(padZip(cell("zip")))
		if !ok {
			return nil, fmt.Errorf("line %d: invalid zip %q", line, cell("zip"))
		}
		lat, err := strconv.ParseFloat(cell("lat"), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("line %d: invalid latitude %q", line, cell("lat"))
		}
		lon, err := strconv.ParseFloat(cell("lon"), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("line %d: invalid longitude %q", line, cell("lon"))
		}
		state := strings.ToUpper(cell("state"))
		if state == "" {
			return nil, fmt.Errorf("line %d: missing state", line)
		}

		locs = append(locs, Location{
			Zip:       zip,
			Latitude:  lat,
			Longitude: lon,
			City:      cell("city"),
			State:     state,
		})
	}

	return locs, nil
}

func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	cols := make(map[string]int, len(columnAliases))
	for name, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[name] = i
				break
			}
		}
	}

	for _, required := range []string{"zip", "lat", "lon", "state"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}

// spreadsheets tend to store ZIP codes as numbers and lose leading zeros
func padZip(s string) string {
	if len(s) < 5 && allDigits(s) {
		return strings.Repeat("0", 5-len(s)) + s
	}
	return s
}
