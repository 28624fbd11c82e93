// Package media looks up named growth media and FBA specifications. Definitions are
// bundled with the binary and may be replaced by a directory with the same layout:
//
//	media_definitions/<name>_media.json
//	fba_specs/<name>_spec.json
package media

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed data
var bundled embed.FS

const (
	mediaDir   = "media_definitions"
	mediaExt   = "_media.json"
	specDir    = "fba_specs"
	specExt    = "_spec.json"
	DefaultDir = ""
)

var ErrUnknown = errors.New("unknown definition")

// Media maps exchange reaction ids to lower bounds. Negative bounds allow uptake.
type Media struct {
	Name      string             `json:"-"`
	Exchanges map[string]float64 `json:"exchanges"`
}

// ExchangeIDs returns the exchange ids in lexical order.
func (m Media) ExchangeIDs() []string {
	ids := make([]string, 0, len(m.Exchanges))
	for id := range m.Exchanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Registry indexes the definitions found in one file system. It is built once and
// passed to whatever needs a lookup.
type Registry struct {
	fsys  fs.FS
	media map[string]string
	specs map[string]string
}

// Open builds a Registry from dir, or from the bundled definitions when dir is empty.
func Open(dir string) (*Registry, error) {
	if dir == DefaultDir {
		sub, err := fs.Sub(bundled, "data")
		if err != nil {
			return nil, err
		}
		return NewRegistry(sub)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("media directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media directory %s is not a directory", dir)
	}
	return NewRegistry(os.DirFS(dir))
}

func NewRegistry(fsys fs.FS) (*Registry, error) {
	media, err := scan(fsys, mediaDir, mediaExt)
	if err != nil {
		return nil, err
	}
	specs, err := scan(fsys, specDir, specExt)
	if err != nil {
		return nil, err
	}
	return &Registry{fsys: fsys, media: media, specs: specs}, nil
}

func scan(fsys fs.FS, dir, ext string) (map[string]string, error) {
	found := make(map[string]string)
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return found, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		found[strings.TrimSuffix(e.Name(), ext)] = path.Join(dir, e.Name())
	}
	return found, nil
}

func names(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) MediaNames() []string { return names(r.media) }
func (r *Registry) SpecNames() []string  { return names(r.specs) }

func (r *Registry) HasMedia(name string) bool {
	_, ok := r.media[name]
	return ok
}

// Media loads the named media definition.
func (r *Registry) Media(name string) (Media, error) {
	p, ok := r.media[name]
	if !ok {
		return Media{}, fmt.Errorf("%w: media %q, available definitions are: %s",
			ErrUnknown, name, strings.Join(r.MediaNames(), ", "))
	}
	data, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return Media{}, err
	}
	m, err := ParseMedia(data)
	if err != nil {
		return Media{}, fmt.Errorf("%s: %w", p, err)
	}
	m.Name = name
	return m, nil
}

// ParseMedia decodes a media definition document.
func ParseMedia(data []byte) (Media, error) {
	var m Media
	if err := json.Unmarshal(data, &m); err != nil {
		return Media{}, fmt.Errorf("invalid media definition: %w", err)
	}
	if m.Exchanges == nil {
		return Media{}, errors.New("invalid media definition: no exchanges")
	}
	return m, nil
}

// Spec returns the raw FBA specification document registered under name.
func (r *Registry) Spec(name string) ([]byte, error) {
	p, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: fba spec %q, available definitions are: %s",
			ErrUnknown, name, strings.Join(r.SpecNames(), ", "))
	}
	return fs.ReadFile(r.fsys, p)
}
