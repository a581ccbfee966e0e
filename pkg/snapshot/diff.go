package snapshot

import (
	"bytes"
	"slices"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff is the difference between a stored snapshot and the live alerts.
type Diff struct {
	// Added rows are live but not in the snapshot, Removed the reverse.
	Added   []Row
	Removed []Row
	// Unified is a unified diff of the two CSV renderings.
	Unified string
}

func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Compare diffs expected against current. Both are sorted first.
func Compare(expected, current []Row) (*Diff, error) {
	expected = slices.Clone(expected)
	current = slices.Clone(current)
	slices.SortFunc(expected, compareRows)
	slices.SortFunc(current, compareRows)

	d := &Diff{}
	for _, row := range current {
		if !slices.Contains(expected, row) {
			d.Added = append(d.Added, row)
		}
	}
	for _, row := range expected {
		if !slices.Contains(current, row) {
			d.Removed = append(d.Removed, row)
		}
	}
	if d.Empty() {
		return d, nil
	}

	var a, b bytes.Buffer
	if err := WriteCSV(&a, expected); err != nil {
		return nil, err
	}
	if err := WriteCSV(&b, current); err != nil {
		return nil, err
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.String()),
		B:        difflib.SplitLines(b.String()),
		FromFile: "expected",
		ToFile:   "current",
		Context:  1,
	})
	if err != nil {
		return nil, err
	}
	d.Unified = unified
	return d, nil
}
