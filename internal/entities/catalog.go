package entities

import (
	"fmt"
	"strings"
)

// CatalogItem is the canonical shape of a tenant catalog entry. The backend
// collections are heterogeneous (Id/id/ID, Image/ImgOne/Thumbnail, Title vs
// Name all alias the same concepts), so alias resolution happens exactly once,
// here, at cache-ingestion time.
type CatalogItem struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"` // collection name, e.g. "product"
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Price       string            `json:"price,omitempty"`
	Image       string            `json:"image,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"` // extra searchable fields
}

// Link returns the navigable detail-page path for the item.
func (c CatalogItem) Link() string {
	return "/" + c.Source + "/view/" + c.ID
}

// SearchResult pairs a cached item with its similarity score (0-100).
type SearchResult struct {
	Item  CatalogItem `json:"item"`
	Score int         `json:"score"`
}

// ContactInfo is the tenant's business profile, folded into the AI context blob.
type ContactInfo struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	About   string `json:"about,omitempty"`
}

var (
	idAliases    = []string{"Id", "id", "ID", "_id"}
	titleAliases = []string{"Title", "title", "Name", "name"}
	descAliases  = []string{"Description", "description", "Details", "details", "Body", "body"}
	priceAliases = []string{"Price", "price"}
	// Image alias order is load-bearing: Image, ImgOne, Thumbnail, image.
	ImageAliases = []string{"Image", "ImgOne", "Thumbnail", "image"}

	searchFieldAliases = map[string][]string{
		"name":     {"Name", "name"},
		"subtitle": {"Subtitle", "subtitle"},
		"author":   {"Author", "author"},
		"category": {"Category", "category"},
		"tags":     {"Tags", "tags"},
	}
)

// NormalizeCatalogItem maps one raw backend record onto the canonical shape.
func NormalizeCatalogItem(source string, raw map[string]any) CatalogItem {
	item := CatalogItem{
		ID:          FieldString(raw, idAliases...),
		Source:      source,
		Title:       FieldString(raw, titleAliases...),
		Description: FieldString(raw, descAliases...),
		Price:       FieldString(raw, priceAliases...),
		Image:       FieldString(raw, ImageAliases...),
	}
	for canonical, aliases := range searchFieldAliases {
		if v := FieldString(raw, aliases...); v != "" {
			if item.Fields == nil {
				item.Fields = make(map[string]string)
			}
			item.Fields[canonical] = v
		}
	}
	return item
}

// FieldString returns the first non-empty alias of a raw record as a string.
// Slices (e.g. tag lists) are joined with spaces; numbers are printed without
// a float suffix where possible.
func FieldString(raw map[string]any, aliases ...string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
