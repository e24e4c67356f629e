package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// column indexes into a record; -1 means absent.
type columns map[string]int

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// has reports whether some recognized column sits at index i.
func (c columns) has(i int) bool {
	for _, j := range c {
		if j == i {
			return true
		}
	}
	return false
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer("ç", "c", "ã", "a", "á", "a", "é", "e", "ê", "e", "í", "i", "ó", "o", "ô", "o", " ", "_", "-", "_")
	return r.Replace(s)
}

// mapHeader resolves known column names through aliases. It returns false
// when a required name is missing.
func mapHeader(header []string, aliases map[string]string, required ...string) (columns, bool) {
	cols := columns{}
	for i, h := range header {
		if name, ok := aliases[normalizeHeader(h)]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			return cols, false
		}
	}
	return cols, true
}

func positional(names ...string) columns {
	cols := columns{}
	for i, n := range names {
		cols[n] = i
	}
	return cols
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	return cr
}

// readAll returns the header, the data records and their line numbers.
func readAll(r io.Reader) ([]string, [][]string, []int, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		records = append(records, rec)
		lines = append(lines, line)
	}
	return header, records, lines, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
