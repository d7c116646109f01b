package domain

import (
	"path"
	"strings"
)

// MaxImagesPerGroup caps a product's final image list.
const MaxImagesPerGroup = 12

const fallbackGroupPrompt = "product photo"

// ImageSource is one image URL as submitted by the scan pipeline, with the
// free-text hints the seller's upload carried.
type ImageSource struct {
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Folder string `json:"folder,omitempty"`
}

// Candidate is an image awaiting group assignment.
type Candidate struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
	// Order is the original ingestion position, used for stable output ordering.
	Order int `json:"order"`
	// Index is the position in the deduplicated candidate slice.
	Index int `json:"index"`
}

// NewCandidates builds the candidate list from submitted images, dropping
// duplicates by canonical key. The first occurrence wins.
func NewCandidates(sources []ImageSource) []Candidate {
	out := make([]Candidate, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for order, src := range sources {
		key := CanonicalImageKey(src.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name := strings.TrimSpace(src.Name)
		if name == "" {
			name = nameFromURL(key)
		}
		out = append(out, Candidate{
			URL:    key,
			Name:   name,
			Folder: strings.TrimSpace(src.Folder),
			Order:  order,
			Index:  len(out),
		})
	}
	return out
}

func nameFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	base := path.Base(u)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Group is a provisional product.
type Group struct {
	GroupID string   `json:"groupId"`
	Brand   string   `json:"brand,omitempty"`
	Product string   `json:"product,omitempty"`
	Variant string   `json:"variant,omitempty"`
	Claims  []string `json:"claims,omitempty"`
	Images  []string `json:"images"`
}

// Prompt is the text the group is matched against.
func (g Group) Prompt() string {
	parts := make([]string, 0, 3+len(g.Claims))
	for _, p := range append([]string{g.Brand, g.Product, g.Variant}, g.Claims...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fallbackGroupPrompt
	}
	return strings.Join(parts, " ")
}

// Clone returns a copy whose slices do not alias g.
func (g Group) Clone() Group {
	out := g
	out.Claims = append([]string(nil), g.Claims...)
	out.Images = append([]string(nil), g.Images...)
	return out
}

// Orphan is a candidate no group claimed. Scores and Similarities are indexed
// like the group slice the engine ran against; NaN marks a missing value.
type Orphan struct {
	Candidate    Candidate `json:"candidate"`
	Scores       []float64 `json:"-"`
	Similarities []float64 `json:"-"`
}

// OrphanReassignment is the outcome of the second-chance pass for one orphan.
type OrphanReassignment struct {
	OrphanKey      string  `json:"orphanKey"`
	MatchedGroupID string  `json:"matchedGroupId"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}
