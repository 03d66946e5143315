// Package catalog loads the crop instruction catalog. The catalog is read
// once at startup and shared read-only for the life of the process.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/pelletier/go-toml/v2"
)

//go:embed crops.json
var defaultCatalog []byte

var (
	ErrDuplicateCrop = errors.New("duplicate crop id")
	ErrUnknownFormat = errors.New("unknown catalog format")
	ErrEmptyCatalog  = errors.New("catalog has no crops")
)

// Format is the encoding of a catalog file
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Default returns the catalog embedded in the binary.
func Default() (engine.Catalog, error) {
	return Parse(defaultCatalog, FormatJSON)
}

// Load reads a catalog file, choosing the format from its extension. An
// empty path returns the embedded catalog.
func Load(path string) (engine.Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".toml":
		format = FormatTOML
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog, lower-cases its crop ids and prepares each
// instruction's growing windows.
func Parse(data []byte, format Format) (engine.Catalog, error) {
	raw := map[string]*engine.CropInstruction{}

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding json catalog: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding toml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	c := make(engine.Catalog, len(raw))
	for id, instr := range raw {
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" || instr == nil {
			continue
		}
		if _, dup := c[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCrop, key)
		}
		instr.Prepare()
		c[key] = instr
	}

	if len(c) == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// IDs lists the catalog's crop ids in sorted order.
func IDs(c engine.Catalog) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
