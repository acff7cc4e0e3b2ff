package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Encoding maps categorical string attributes to stable integer codes.
// Codes are positions in Columns[name]; new categories are appended so a
// code, once assigned, never changes.
type Encoding struct {
	Columns map[string][]string `json:"columns"`

	index map[string]map[string]int
}

func NewEncoding() *Encoding {
	return &Encoding{Columns: map[string][]string{}}
}

// LoadEncoding reads a saved table. A missing file yields an empty table.
func LoadEncoding(path string) (*Encoding, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewEncoding(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read encoding %s: %w", path, err)
	}
	enc := NewEncoding()
	if err := json.Unmarshal(data, enc); err != nil {
		return nil, fmt.Errorf("parse encoding %s: %w", path, err)
	}
	if enc.Columns == nil {
		enc.Columns = map[string][]string{}
	}
	for col, cats := range enc.Columns {
		seen := make(map[string]bool, len(cats))
		for _, c := range cats {
			if seen[c] {
				return nil, fmt.Errorf("parse encoding %s: duplicate category %q in %s", path, c, col)
			}
			seen[c] = true
		}
	}
	enc.reindex()
	return enc, nil
}

func (e *Encoding) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Fit registers values for column. Unseen values are sorted and appended
// after the existing categories. It reports how many were added.
func (e *Encoding) Fit(column string, values []string) int {
	if e.index == nil {
		e.reindex()
	}
	known := e.index[column]
	fresh := map[string]bool{}
	for _, v := range values {
		if _, ok := known[v]; !ok {
			fresh[v] = true
		}
	}
	if len(fresh) == 0 {
		return 0
	}
	added := make([]string, 0, len(fresh))
	for v := range fresh {
		added = append(added, v)
	}
	sort.Strings(added)
	e.Columns[column] = append(e.Columns[column], added...)
	e.reindex()
	return len(added)
}

// Code returns the code of value in column, or -1 when it is unknown.
func (e *Encoding) Code(column, value string) int {
	if e.index == nil {
		e.reindex()
	}
	if code, ok := e.index[column][value]; ok {
		return code
	}
	return -1
}

func (e *Encoding) Categories(column string) []string {
	return e.Columns[column]
}

func (e *Encoding) reindex() {
	if e.Columns == nil {
		e.Columns = map[string][]string{}
	}
	e.index = make(map[string]map[string]int, len(e.Columns))
	for col, cats := range e.Columns {
		m := make(map[string]int, len(cats))
		for i, c := range cats {
			m[c] = i
		}
		e.index[col] = m
	}
}
