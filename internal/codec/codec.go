// Package codec converts collections to and from the interchange formats:
// JSON (lossless, importable) and CSV (an 11-column spreadsheet projection,
// export only).
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Format is an export format.
type Format string

// Formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists every export format.
var Formats = []Format{FormatJSON, FormatCSV}

// CSVHeader is the fixed CSV column set.
var CSVHeader = []string{
	"Name",
	"Brand",
	"Type",
	"Form",
	"Amount",
	"Unit",
	"Rating",
	"Brewing Temperature",
	"Temperature Unit",
	"Steep Time (minutes)",
	"Tasting Notes",
}

// ParseFormat returns the Format named by s, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownFormat, s)
	}
	return f, nil
}

// Select returns the teas whose ids are in ids, in collection order. A nil
// ids selects everything; an empty non-nil ids selects nothing.
func Select(teas []types.Tea, ids []string) []types.Tea {
	if ids == nil {
		return slices.Clone(teas)
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := []types.Tea{}
	for _, t := range teas {
		if _, ok := want[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Export writes teas to w in format.
func Export(w io.Writer, format Format, teas []types.Tea) error {
	switch format {
	case FormatJSON:
		return ExportJSON(w, teas)
	case FormatCSV:
		return ExportCSV(w, teas)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownFormat, format)
	}
}

// ExportJSON writes teas as an indented JSON array. An empty collection is
// written as [].
func ExportJSON(w io.Writer, teas []types.Tea) error {
	if teas == nil {
		teas = []types.Tea{}
	}
	data, err := json.MarshalIndent(teas, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing json export: %w", err)
	}
	return nil
}

// ExportCSV writes the header and one row per tea. Every cell is quoted and
// embedded quotes are doubled. Rows are separated by a bare newline.
func ExportCSV(w io.Writer, teas []types.Tea) error {
	var buf bytes.Buffer
	writeRow(&buf, CSVHeader)
	for i := range teas {
		buf.WriteByte('\n')
		writeRow(&buf, CSVRow(&teas[i]))
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing csv export: %w", err)
	}
	return nil
}

// CSVRow projects t onto the CSV columns.
func CSVRow(t *types.Tea) []string {
	return []string{
		t.Name,
		t.Brand,
		string(t.Type),
		string(t.Form),
		formatNumber(t.Amount),
		string(t.Unit),
		formatNumber(t.Rating),
		formatNumber(t.BrewingInstructions.Temperature),
		string(t.BrewingInstructions.TempUnit),
		formatNumber(float64(t.BrewingInstructions.SteepTimeInSeconds) / 60),
		t.TastingNotes,
	}
}

func writeRow(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		buf.WriteByte('"')
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DecodeImport reads an import payload. The payload must be a JSON array;
// its elements are returned undecoded for validation.
func DecodeImport(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON array", types.ErrInvalidImportData)
	}
	return records, nil
}

// Filename returns the suggested export file name for an export taken at at,
// e.g. tea-collection-2026-01-02T15-04-05Z.json.
func Filename(format Format, at time.Time) string {
	return fmt.Sprintf("tea-collection-%s.%s", at.UTC().Format("2006-01-02T15-04-05Z"), format)
}
