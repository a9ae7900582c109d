package transfer

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// Format is a bulk file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatZIP  Format = "zip"
)

// MaxImportBytes bounds a single import payload and every ZIP entry.
const MaxImportBytes = 10 << 20

// Zip entry names written by WriteZIP.
const (
	zipCSVName  = "vehicles.csv"
	zipJSONName = "vehicles.json"
)

var (
	// ErrUnknownFormat is returned for formats other than csv, json and zip.
	ErrUnknownFormat = errors.New("transfer: unknown format")
	// ErrNoHeader is returned for CSV input without a recognizable header row.
	ErrNoHeader = errors.New("transfer: no recognizable header row")
	// ErrEmptyArchive is returned for a ZIP without a .json or .csv entry.
	ErrEmptyArchive = errors.New("transfer: archive has no csv or json entry")
)

// ParseFormat accepts "csv", "JSON", ".zip" and the like.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatCSV, FormatJSON, FormatZIP:
		return f, nil
	case "":
		return FormatCSV, nil
	}
	return "", ErrUnknownFormat
}

// FormatFromFilename picks the format from a file extension, or "" when the
// extension is not recognized.
func FormatFromFilename(name string) Format {
	f, err := ParseFormat(path.Ext(strings.ToLower(name)))
	if err != nil || path.Ext(name) == "" {
		return ""
	}
	return f
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatZIP:
		return "application/zip"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Export is the JSON document written by WriteJSON.
type Export struct {
	CollectionID string `json:"collection_id"`
	Name         string `json:"name,omitempty"`
	ExportedAt   string `json:"exported_at"`
	Vehicles     []Row  `json:"vehicles"`
}

// Write encodes vehicles in format f.
func Write(w io.Writer, f Format, c domain.Collection, vehicles []domain.Vehicle, now time.Time) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, vehicles)
	case FormatJSON:
		return WriteJSON(w, c, vehicles, now)
	case FormatZIP:
		return WriteZIP(w, c, vehicles, now)
	}
	return ErrUnknownFormat
}

// WriteCSV writes a header row with Columns and one row per vehicle.
func WriteCSV(w io.Writer, vehicles []domain.Vehicle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for _, v := range vehicles {
		r := FromVehicle(v)
		for i, c := range Columns {
			rec[i] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an Export document.
func WriteJSON(w io.Writer, c domain.Collection, vehicles []domain.Vehicle, now time.Time) error {
	doc := Export{
		CollectionID: c.ID,
		Name:         c.Name,
		ExportedAt:   now.UTC().Format(time.RFC3339),
		Vehicles:     make([]Row, 0, len(vehicles)),
	}
	for _, v := range vehicles {
		r := FromVehicle(v)
		for k, val := range r {
			if val == "" {
				delete(r, k)
			}
		}
		doc.Vehicles = append(doc.Vehicles, r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteZIP writes an archive holding vehicles.csv and vehicles.json.
func WriteZIP(w io.Writer, c domain.Collection, vehicles []domain.Vehicle, now time.Time) error {
	zw := zip.NewWriter(w)
	entries := []struct {
		name  string
		write func(io.Writer) error
	}{
		{zipCSVName, func(w io.Writer) error { return WriteCSV(w, vehicles) }},
		{zipJSONName, func(w io.Writer) error { return WriteJSON(w, c, vehicles, now) }},
	}
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return err
		}
		if err := e.write(fw); err != nil {
			return fmt.Errorf("zip %s: %w", e.name, err)
		}
	}
	return zw.Close()
}

// Read decodes rows from data in format f. CSV rows carry their file line
// (the header is line 1); JSON rows are numbered from 1.
func Read(f Format, data []byte) ([]Row, []RowError, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(bytes.NewReader(data))
	case FormatJSON:
		return ReadJSON(data)
	case FormatZIP:
		return ReadZIP(data)
	}
	return nil, nil, ErrUnknownFormat
}

// ReadCSV reads rows keyed by canonical field. Unknown columns are ignored;
// the header must name at least one known field.
func ReadCSV(r io.Reader) ([]Row, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoHeader
		}
		return nil, nil, err
	}
	fields := make([]string, len(header))
	known := 0
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if f, ok := CanonicalField(h); ok {
			fields[i] = f
			known++
		}
	}
	if known == 0 {
		return nil, nil, ErrNoHeader
	}

	var (
		rows []Row
		errs []RowError
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, RowError{Line: pe.StartLine, Message: pe.Err.Error()})
				continue
			}
			return rows, errs, err
		}
		row := Row{}
		for i, val := range rec {
			if i < len(fields) && fields[i] != "" && strings.TrimSpace(val) != "" {
				row[fields[i]] = strings.TrimSpace(val)
			}
		}
		if len(row) == 0 {
			continue
		}
		line, _ := cr.FieldPos(0)
		row[lineKey] = strconv.Itoa(line)
		rows = append(rows, row)
	}
	return rows, errs, nil
}

// ReadJSON accepts either an array of objects or an Export-shaped document.
// Keys go through the same aliases as CSV headers. Scalar values are
// stringified; nested values are ignored.
func ReadJSON(data []byte) ([]Row, []RowError, error) {
	var items []map[string]any
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, fmt.Errorf("transfer: decode json: %w", err)
		}
	} else {
		var doc struct {
			Vehicles []map[string]any `json:"vehicles"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, nil, fmt.Errorf("transfer: decode json: %w", err)
		}
		items = doc.Vehicles
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		row := Row{}
		for k, v := range item {
			f, ok := CanonicalField(k)
			if !ok {
				continue
			}
			if s := scalarString(v); s != "" {
				row[f] = s
			}
		}
		if len(row) == 0 {
			continue
		}
		row[lineKey] = strconv.Itoa(i + 1)
		rows = append(rows, row)
	}
	return rows, nil, nil
}

// ReadZIP reads the first .json entry, or the first .csv entry when the
// archive has no JSON.
func ReadZIP(data []byte) ([]Row, []RowError, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: open zip: %w", err)
	}
	var jsonEntry, csvEntry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		switch FormatFromFilename(f.Name) {
		case FormatJSON:
			if jsonEntry == nil {
				jsonEntry = f
			}
		case FormatCSV:
			if csvEntry == nil {
				csvEntry = f
			}
		}
	}

	entry, format := jsonEntry, FormatJSON
	if entry == nil {
		entry, format = csvEntry, FormatCSV
	}
	if entry == nil {
		return nil, nil, ErrEmptyArchive
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, MaxImportBytes+1))
	if err != nil {
		return nil, nil, err
	}
	if len(body) > MaxImportBytes {
		return nil, nil, fmt.Errorf("transfer: %s exceeds %d bytes", entry.Name, MaxImportBytes)
	}
	return Read(format, body)
}

// lineKey carries the source line through to row errors; it is never a
// column name.
const lineKey = "\x00line"

// Line returns the source line of r, or 0.
func (r Row) Line() int {
	n, _ := strconv.Atoi(r[lineKey])
	return n
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "yes"
		}
		return "no"
	}
	return ""
}
