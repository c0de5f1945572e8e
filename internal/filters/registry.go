// Package filters is the fixed catalog of overlay filters.
//
// Filters are declared here and nowhere else: there is no runtime registration,
// so every geometry resolver in the catalog is visible in one place and can be
// tested in isolation.
package filters

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ironsheep/face-overlay/internal/assets"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// ErrUnknownFilter is returned when a filter ID is not in the catalog.
var ErrUnknownFilter = errors.New("unknown filter")

// Visual is what a filter draws: a raster asset when available, otherwise
// the glyph.
type Visual struct {
	Glyph string      `json:"glyph"`
	Tint  string      `json:"tint,omitempty"` // glyph color as "#RRGGBB"
	Asset *assets.Ref `json:"asset,omitempty"`
}

// Filter is one catalog entry. Filters are immutable once the registry is
// built.
type Filter struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"name"`
	Description string            `json:"description"`
	Visual      Visual            `json:"visual"`
	Resolver    geometry.Resolver `json:"-"`
}

// AssetKey returns the key of the filter's raster asset, or "" for
// glyph-only filters.
func (f *Filter) AssetKey() string {
	if f == nil || f.Visual.Asset == nil {
		return ""
	}
	return f.Visual.Asset.Key
}

// Registry is an ordered, read-only list of filters.
type Registry struct {
	filters []*Filter
	byID    map[string]*Filter
}

// NewRegistry builds the catalog. assetBase is a directory path or URL prefix
// under which each filter's "<id>.png" art lives; an empty base yields
// glyph-only filters.
func NewRegistry(assetBase string) *Registry {
	entries := []struct {
		id, name, description, glyph, tint string
		resolver                           func(key string) geometry.Resolver
	}{
		{
			"fruit-crown", "Fruit Crown", "Wear a magical crown of fresh fruits!", "👑", "#F5C518",
			func(key string) geometry.Resolver { return geometry.Crown{AssetKey: key} },
		},
		{
			"milk-mustache", "Milk Mustache", "Classic milk mustache for strong bones!", "🥛", "#FFFFFF",
			func(key string) geometry.Resolver { return geometry.Mouth{AssetKey: key} },
		},
		{
			"veggie-power", "Veggie Power", "Get super powers from vegetables!", "💪", "#3CB043",
			func(key string) geometry.Resolver { return geometry.Cheek{AssetKey: key} },
		},
		{
			"rainbow-aura", "Rainbow Nutrition", "Show your colorful healthy eating!", "🌈", "#FF6EC7",
			func(key string) geometry.Resolver { return geometry.Aura{AssetKey: key} },
		},
	}

	r := &Registry{byID: make(map[string]*Filter, len(entries))}
	for _, e := range entries {
		var ref *assets.Ref
		key := ""
		if assetBase != "" {
			ref = &assets.Ref{Key: e.id, Locator: joinLocator(assetBase, e.id+".png")}
			key = ref.Key
		}
		f := &Filter{
			ID:          e.id,
			DisplayName: e.name,
			Description: e.description,
			Visual:      Visual{Glyph: e.glyph, Tint: e.tint, Asset: ref},
			Resolver:    e.resolver(key),
		}
		r.filters = append(r.filters, f)
		r.byID[f.ID] = f
	}
	return r
}

// List returns the filters in catalog order.
func (r *Registry) List() []*Filter {
	out := make([]*Filter, len(r.filters))
	copy(out, r.filters)
	return out
}

// Find looks a filter up by ID.
func (r *Registry) Find(id string) (*Filter, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// Assets returns the raster assets referenced by the catalog, for prefetch.
func (r *Registry) Assets() []assets.Ref {
	var refs []assets.Ref
	for _, f := range r.filters {
		if f.Visual.Asset != nil {
			refs = append(refs, *f.Visual.Asset)
		}
	}
	return refs
}

// Glyphs returns the fallback glyph of every filter that has one.
func (r *Registry) Glyphs() []string {
	var out []string
	for _, f := range r.filters {
		if f.Visual.Glyph != "" {
			out = append(out, f.Visual.Glyph)
		}
	}
	return out
}

func joinLocator(base, name string) string {
	if u, err := url.Parse(base); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		u.Path = path.Join(u.Path, name)
		return u.String()
	}
	return filepath.Join(strings.TrimSuffix(base, string(filepath.Separator)), name)
}
