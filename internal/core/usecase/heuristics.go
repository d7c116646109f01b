package usecase

import (
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// Assignment heuristic weights, added on top of embedding similarity.
const (
	originalSetBonus   = 0.35
	roleFrontBonus     = 0.05
	roleBackPenalty    = -0.04
	roleSideBonus      = 0.02
	visibleTextBonus   = 0.02
	plainColorPenalty  = -0.05
	tokenMatchWeight   = 0.02
	tokenMatchCap      = 3
	placeholderPenalty = -0.08
	minTokenLength     = 3
)

var placeholderTokens = []string{"dummy", "placeholder", "sample", "template"}

var plainBackgroundColors = map[string]struct{}{
	"black":       {},
	"white":       {},
	"plain black": {},
	"plain white": {},
	"pure black":  {},
	"pure white":  {},
	"#000":        {},
	"#000000":     {},
	"#fff":        {},
	"#ffffff":     {},
}

func isPlainBackground(color string) bool {
	_, ok := plainBackgroundColors[strings.ToLower(strings.TrimSpace(color))]
	return ok
}

// heuristicAdjustment scores one (candidate, group) pair without embeddings.
func heuristicAdjustment(
	cand domain.Candidate,
	insight domain.ImageInsight,
	hasInsight bool,
	inOriginalSet bool,
	promptTokens map[string]struct{},
) float64 {
	score := 0.0
	if inOriginalSet {
		score += originalSetBonus
	}
	if hasInsight {
		switch insight.Role {
		case domain.RoleFront:
			score += roleFrontBonus
		case domain.RoleBack:
			score += roleBackPenalty
		case domain.RoleSide:
			score += roleSideBonus
		}
		if insight.HasVisibleText {
			score += visibleTextBonus
		}
		if isPlainBackground(insight.DominantColor) {
			score += plainColorPenalty
		}
	}

	matches := countTokenMatches(promptTokens, candidateTokens(cand), tokenMatchCap)
	score += float64(matches) * tokenMatchWeight

	if hasPlaceholderName(cand.Name) {
		score += placeholderPenalty
	}
	return score
}

func candidateTokens(cand domain.Candidate) map[string]struct{} {
	return toTokenSet(cand.Name + " " + cand.Folder)
}

func hasPlaceholderName(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range placeholderTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func countTokenMatches(a, b map[string]struct{}, limit int) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	matches := 0
	for token := range a {
		if _, ok := b[token]; ok {
			matches++
			if limit > 0 && matches >= limit {
				return matches
			}
		}
	}
	return matches
}

// toTokenSet lowercases s and keeps alphanumeric runs of at least three characters.
func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if len([]rune(token)) < minTokenLength {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// cosineSimilarity is defined only for equal-length, non-zero vectors;
// anything else reports ok=false. Vectors carrying NaN or Inf components
// yield a non-finite similarity that callers must filter.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
