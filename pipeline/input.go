package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
)

// ErrNoInput is returned when no asset identifiers are configured. Callers
// treat it as a clean abort: nothing is written and the process exits 0.
var ErrNoInput = errors.New("no DIDs found in environment")

// Resolver locates the input CSV either in the working directory or under
// the per-asset inputs tree (<InputsDir>/<did>/0).
type Resolver struct {
	Local     bool
	LocalFile string
	InputsDir string
	DIDs      string
}

// Resolve returns the single input path. Only the first asset is used when
// several DIDs are configured.
func (r Resolver) Resolve() (string, error) {
	if r.Local {
		log.Printf("reading local file %s", r.LocalFile)
		return r.LocalFile, nil
	}
	dids, err := r.dids()
	if err != nil {
		return "", err
	}
	if len(dids) > 1 {
		log.Printf("%d DIDs configured, using %s only", len(dids), dids[0])
	}
	path := r.assetPath(dids[0])
	log.Printf("reading asset file %s", path)
	return path, nil
}

// ResolveAll returns one path per configured asset, in DIDS order.
func (r Resolver) ResolveAll() ([]string, error) {
	if r.Local {
		log.Printf("reading local file %s", r.LocalFile)
		return []string{r.LocalFile}, nil
	}
	dids, err := r.dids()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(dids))
	for _, did := range dids {
		path := r.assetPath(did)
		log.Printf("reading asset file %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func (r Resolver) dids() ([]string, error) {
	if r.DIDs == "" {
		return nil, ErrNoInput
	}
	var dids []string
	if err := json.Unmarshal([]byte(r.DIDs), &dids); err != nil {
		return nil, fmt.Errorf("parse DIDS: %w", err)
	}
	if len(dids) == 0 {
		return nil, ErrNoInput
	}
	for i, did := range dids {
		if did == "" {
			return nil, fmt.Errorf("parse DIDS: empty identifier at index %d", i)
		}
	}
	return dids, nil
}

func (r Resolver) assetPath(did string) string {
	return filepath.Join(r.InputsDir, did, "0")
}
