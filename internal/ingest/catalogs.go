package ingest

import (
	"sort"
	"strconv"
	"strings"

	"quiz-rankings-service/internal/domain"
)

// CatalogDirectory maps catalog uids, slugs and sort orders to display names.
// Build one per load and pass it to the normalizers.
type CatalogDirectory struct {
	names map[string]string
	count int
}

// NewCatalogDirectory indexes the given catalogs. Lookups are case-insensitive.
func NewCatalogDirectory(catalogs []domain.Catalog) *CatalogDirectory {
	dir := &CatalogDirectory{names: make(map[string]string), count: len(catalogs)}
	for _, c := range catalogs {
		name := displayName(c)
		for _, alias := range []string{c.UID, c.Slug, c.SortOrder} {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			dir.names[alias] = name
			dir.names[strings.ToLower(alias)] = name
		}
	}
	return dir
}

// Resolve returns the display name for key, or key itself when unknown.
func (d *CatalogDirectory) Resolve(key string) string {
	key = strings.TrimSpace(key)
	if d == nil || key == "" {
		return key
	}
	if name, ok := d.names[key]; ok {
		return name
	}
	if name, ok := d.names[strings.ToLower(key)]; ok {
		return name
	}
	return key
}

// Count is the number of catalogs the event defines. Zero means unknown.
func (d *CatalogDirectory) Count() int {
	if d == nil {
		return 0
	}
	return d.count
}

func displayName(c domain.Catalog) string {
	for _, candidate := range []string{c.Name, c.Slug, c.SortOrder, c.UID} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

// SortCatalogs orders catalogs by numeric sort order, then name.
func SortCatalogs(catalogs []domain.Catalog) {
	sort.SliceStable(catalogs, func(i, j int) bool {
		oi, iok := strconv.Atoi(strings.TrimSpace(catalogs[i].SortOrder))
		oj, jok := strconv.Atoi(strings.TrimSpace(catalogs[j].SortOrder))
		switch {
		case iok == nil && jok == nil && oi != oj:
			return oi < oj
		case iok == nil && jok != nil:
			return true
		case iok != nil && jok == nil:
			return false
		}
		return displayName(catalogs[i]) < displayName(catalogs[j])
	})
}
