package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

type Role string

const (
	RoleFront     Role = "front"
	RoleBack      Role = "back"
	RoleSide      Role = "side"
	RoleDetail    Role = "detail"
	RoleLabel     Role = "label"
	RoleAccessory Role = "accessory"
	RolePackaging Role = "packaging"
	RoleOther     Role = "other"
)

// ParseRole lowercases s and returns the matching role, or "" when s is not
// part of the role vocabulary.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleFront, RoleBack, RoleSide, RoleDetail, RoleLabel, RoleAccessory, RolePackaging, RoleOther:
		return r
	default:
		return ""
	}
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Vision output occasionally carries null or a number here; treat as absent.
		*r = ""
		return nil
	}
	*r = ParseRole(raw)
	return nil
}

type OCRPayload struct {
	Text  string   `json:"text,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// ImageInsight holds the vision model's per-image hints.
type ImageInsight struct {
	Key    string `json:"key,omitempty"`
	AltKey string `json:"_key,omitempty"`
	URLKey string `json:"urlKey,omitempty"`
	URL    string `json:"url,omitempty"`

	Role              Role     `json:"role,omitempty"`
	RoleScore         float64  `json:"roleScore,omitempty"`
	HasVisibleText    bool     `json:"hasVisibleText,omitempty"`
	DominantColor     string   `json:"dominantColor,omitempty"`
	EvidenceTriggers  []string `json:"evidenceTriggers,omitempty"`
	VisualDescription string   `json:"visualDescription,omitempty"`

	OCRText    string      `json:"ocrText,omitempty"`
	TextBlocks []string    `json:"textBlocks,omitempty"`
	Text       string      `json:"text,omitempty"`
	OCR        *OCRPayload `json:"ocr,omitempty"`
}

// DerivedKey returns the first populated identifier: key, _key, urlKey, url.
func (in ImageInsight) DerivedKey() string {
	for _, candidate := range []string{in.Key, in.AltKey, in.URLKey, in.URL} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// ConsolidatedText collapses every OCR text variant into one string.
// Identical fragments are kept once.
func (in ImageInsight) ConsolidatedText() string {
	parts := make([]string, 0, 4+len(in.TextBlocks))
	parts = append(parts, in.OCRText)
	parts = append(parts, in.TextBlocks...)
	parts = append(parts, in.Text)
	if in.OCR != nil {
		parts = append(parts, in.OCR.Text)
		parts = append(parts, in.OCR.Lines...)
	}

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n")
}

// AbsRoleScore is |roleScore|, or 0 when the score is not finite.
func (in ImageInsight) AbsRoleScore() float64 {
	if math.IsNaN(in.RoleScore) || math.IsInf(in.RoleScore, 0) {
		return 0
	}
	return math.Abs(in.RoleScore)
}

// MergeInsights combines two records for the same canonical key. The result
// does not depend on argument order.
func MergeInsights(a, b ImageInsight) ImageInsight {
	winner, loser := a, b
	if preferInsight(b, a) {
		winner, loser = b, a
	}

	out := winner
	out.EvidenceTriggers = unionTriggers(winner.EvidenceTriggers, loser.EvidenceTriggers)
	out.HasVisibleText = winner.HasVisibleText || loser.HasVisibleText
	if out.DominantColor == "" {
		out.DominantColor = loser.DominantColor
	}
	if out.VisualDescription == "" {
		out.VisualDescription = loser.VisualDescription
	}
	if out.ConsolidatedText() == "" {
		out.OCRText = loser.OCRText
		out.TextBlocks = loser.TextBlocks
		out.Text = loser.Text
		out.OCR = loser.OCR
	}
	if out.URL == "" {
		out.URL = loser.URL
	}
	return out
}

// preferInsight reports whether a should win over b. The comparison is a
// strict total order so merges are commutative.
func preferInsight(a, b ImageInsight) bool {
	if (a.Role != "") != (b.Role != "") {
		return a.Role != ""
	}
	if sa, sb := a.AbsRoleScore(), b.AbsRoleScore(); sa != sb {
		return sa > sb
	}
	if a.HasVisibleText != b.HasVisibleText {
		return a.HasVisibleText
	}
	ta, tb := a.ConsolidatedText(), b.ConsolidatedText()
	if len(ta) != len(tb) {
		return len(ta) > len(tb)
	}
	for _, pair := range [][2]string{
		{string(a.Role), string(b.Role)},
		{fmt.Sprintf("%g", a.RoleScore), fmt.Sprintf("%g", b.RoleScore)},
		{ta, tb},
		{a.VisualDescription, b.VisualDescription},
		{a.DominantColor, b.DominantColor},
		{strings.Join(a.EvidenceTriggers, "\x00"), strings.Join(b.EvidenceTriggers, "\x00")},
		{a.URL, b.URL},
		{a.Key, b.Key},
		{a.AltKey, b.AltKey},
		{a.URLKey, b.URLKey},
	} {
		if pair[0] != pair[1] {
			return pair[0] < pair[1]
		}
	}
	return false
}

func unionTriggers(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			norm := strings.ToLower(t)
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// InsightSet decodes imageInsights given either as an array or as an object
// keyed by image key. Object keys fill in a missing key field. Entries that
// cannot be decoded are dropped, and any other shape decodes to an empty set.
type InsightSet []ImageInsight

func (s *InsightSet) UnmarshalJSON(data []byte) error {
	*s = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil
		}
		out := make([]ImageInsight, 0, len(raws))
		for _, raw := range raws {
			var in ImageInsight
			if err := json.Unmarshal(raw, &in); err != nil {
				continue
			}
			out = append(out, in)
		}
		*s = out
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]ImageInsight, 0, len(keyed))
		for _, k := range keys {
			var in ImageInsight
			if err := json.Unmarshal(keyed[k], &in); err != nil {
				continue
			}
			if in.DerivedKey() == "" {
				in.Key = k
			}
			out = append(out, in)
		}
		*s = out
	}
	return nil
}

// BuildInsightMap indexes insights by canonical image key, merging duplicates.
// Entries without a derivable key are dropped.
func BuildInsightMap(insights []ImageInsight) map[string]ImageInsight {
	out := make(map[string]ImageInsight, len(insights))
	for _, in := range insights {
		key := CanonicalImageKey(in.DerivedKey())
		if key == "" {
			continue
		}
		if in.URL == "" {
			in.URL = key
		}
		if existing, ok := out[key]; ok {
			out[key] = MergeInsights(existing, in)
			continue
		}
		out[key] = in
	}
	return out
}
