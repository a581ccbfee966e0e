// Package snapshot records the secret scanning alerts GitHub raises for custom
// patterns as CSV files and reports how live alerts drift from them.
package snapshot

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/rxwycdh/rxhash"
)

// Header is the first line of every snapshot file.
var Header = []string{
	"secret_type",
	"secret_type_display_name",
	"commit",
	"path",
	"start_line",
	"end_line",
	"start_column",
	"end_column",
}

// excludedPrefixes are paths of vendored environments whose alerts are noise.
var excludedPrefixes = []string{".venv"}

// Row is one alert location of a snapshot.
type Row struct {
	SecretType  string
	DisplayName string
	Commit      string
	Path        string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
}

func (r Row) record() []string {
	return []string{
		r.SecretType,
		r.DisplayName,
		r.Commit,
		r.Path,
		strconv.Itoa(r.StartLine),
		strconv.Itoa(r.EndLine),
		strconv.Itoa(r.StartColumn),
		strconv.Itoa(r.EndColumn),
	}
}

func compareRows(a, b Row) int {
	return cmp.Or(
		cmp.Compare(a.SecretType, b.SecretType),
		cmp.Compare(a.Path, b.Path),
		cmp.Compare(a.StartLine, b.StartLine),
		cmp.Compare(a.StartColumn, b.StartColumn),
		cmp.Compare(a.EndLine, b.EndLine),
		cmp.Compare(a.EndColumn, b.EndColumn),
		cmp.Compare(a.Commit, b.Commit),
		cmp.Compare(a.DisplayName, b.DisplayName),
	)
}

// Rows flattens alerts into sorted, deduplicated rows. Only commit locations
// are kept.
func Rows(alerts []Alert) []Row {
	var rows []Row
	seen := map[string]bool{}
	for _, alert := range alerts {
		for _, l := range alert.Locations {
			if l.Type != "commit" {
				continue
			}
			if excludedPath(l.Path) {
				log.Trace().Str("path", l.Path).Msg("Skipped excluded location")
				continue
			}

			row := Row{
				SecretType:  alert.SecretType,
				DisplayName: alert.DisplayName,
				Commit:      l.Commit,
				Path:        l.Path,
				StartLine:   l.StartLine,
				EndLine:     l.EndLine,
				StartColumn: l.StartColumn,
				EndColumn:   l.EndColumn,
			}
			if hash, err := rxhash.HashStruct(row); err == nil {
				if seen[hash] {
					continue
				}
				seen[hash] = true
			}
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, compareRows)
	return rows
}

func excludedPath(path string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a snapshot written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected snapshot header %q", strings.Join(header, ","))
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}

		row := Row{SecretType: record[0], DisplayName: record[1], Commit: record[2], Path: record[3]}
		ints := []*int{&row.StartLine, &row.EndLine, &row.StartColumn, &row.EndColumn}
		for i, dst := range ints {
			*dst, err = strconv.Atoi(record[4+i])
			if err != nil {
				line, _ := cr.FieldPos(4 + i)
				return nil, fmt.Errorf("invalid %s on line %d: %w", Header[4+i], line, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
