package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// Role-confidence adjustments. All are additive; the result is clamped to [0,1].
const (
	frontTextMinChars       = 20
	frontTextMaxChars       = 200
	frontExcessiveTextChars = 400
	backRichTextChars       = 200
	backSparseTextChars     = 30

	frontTextBoost        = 0.10
	frontExcessivePenalty = -0.20
	backTextBoost         = 0.15
	backSparsePenalty     = -0.15

	agreeingEvidenceBoost      = 0.10
	frontOnBackEvidencePenalty = -0.15
	backOnFrontEvidencePenalty = -0.20

	plainBackgroundFrontBoost = 0.05
	symmetricFrontBoost       = 0.05
	rotatedFrontPenalty       = -0.10
)

var frontEvidencePhrases = []string{
	"brand logo",
	"hero text",
	"centered",
	"large text",
	"product name",
	"front label",
}

var backEvidencePhrases = []string{
	"supplement facts",
	"nutrition facts",
	"ingredients",
	"barcode",
	"directions",
	"drug facts",
	"warnings",
	"upc",
}

var fullWrapPhrases = []string{
	"360",
	"full wrap",
	"full-wrap",
	"wraparound",
	"wrap-around",
	"wraps around",
	"panoramic",
}

var symmetricPhrases = []string{
	"symmetric",
	"symmetrical",
	"centered",
	"centred",
	"straight-on",
	"head-on",
	"facing the camera",
}

var rotatedPhrases = []string{
	"rotated",
	"angled",
	"at an angle",
	"tilted",
	"sideways",
	"upside down",
	"three-quarter",
}

// RoleScorer judges one image's role from its own insight only.
type RoleScorer struct{}

func NewRoleScorer() *RoleScorer {
	return &RoleScorer{}
}

func (s *RoleScorer) Score(in domain.ImageInsight) domain.RoleConfidence {
	return ComputeRoleConfidence(in)
}

// ScoreBatch scores every insight with a derivable key. Later entries with the
// same key overwrite earlier ones.
func (s *RoleScorer) ScoreBatch(insights []domain.ImageInsight) map[string]domain.RoleConfidence {
	out := make(map[string]domain.RoleConfidence, len(insights))
	for _, in := range insights {
		key := in.DerivedKey()
		if key == "" {
			continue
		}
		out[key] = ComputeRoleConfidence(in)
	}
	return out
}

// ComputeRoleConfidence is a pure function of a single insight.
func ComputeRoleConfidence(in domain.ImageInsight) domain.RoleConfidence {
	role := in.Role
	if role == "" {
		role = domain.RoleOther
	}
	confidence := in.AbsRoleScore()
	if confidence > 1 {
		confidence = 1
	}
	var flags []string

	textLen := utf8.RuneCountInString(in.ConsolidatedText())
	switch role {
	case domain.RoleFront:
		if textLen >= frontTextMinChars && textLen <= frontTextMaxChars {
			confidence += frontTextBoost
		}
		if textLen > frontExcessiveTextChars {
			confidence += frontExcessivePenalty
			flags = append(flags, domain.FlagExcessiveTextForFront)
		}
	case domain.RoleBack:
		if textLen > backRichTextChars {
			confidence += backTextBoost
		}
		if textLen < backSparseTextChars {
			confidence += backSparsePenalty
			flags = append(flags, domain.FlagLowTextForBack)
		}
	}

	frontHits := matchesAny(in.EvidenceTriggers, frontEvidencePhrases)
	backHits := matchesAny(in.EvidenceTriggers, backEvidencePhrases)
	switch role {
	case domain.RoleFront:
		if frontHits {
			confidence += agreeingEvidenceBoost
		}
		if backHits {
			confidence += backOnFrontEvidencePenalty
			flags = append(flags, domain.FlagBackIndicatorsOnFrontLabel)
		}
	case domain.RoleBack:
		if backHits {
			confidence += agreeingEvidenceBoost
		}
		if frontHits {
			confidence += frontOnBackEvidencePenalty
			flags = append(flags, domain.FlagFrontIndicatorsOnBackLabel)
		}
	}

	if role == domain.RoleFront && isPlainBackground(in.DominantColor) {
		confidence += plainBackgroundFrontBoost
	}

	description := strings.ToLower(in.VisualDescription)
	if containsAny(description, fullWrapPhrases) && role != domain.RoleDetail && role != domain.RoleLabel {
		flags = append(flags, domain.FlagFullWrapLabelDetected)
	}
	if role == domain.RoleFront {
		if containsAny(description, symmetricPhrases) {
			confidence += symmetricFrontBoost
		}
		if containsAny(description, rotatedPhrases) {
			confidence += rotatedFrontPenalty
			flags = append(flags, domain.FlagRotatedImageMarkedAsFront)
		}
	}

	confidence = clamp01(confidence)
	out := domain.RoleConfidence{Role: role, Confidence: confidence}

	if confidence < domain.LowConfidenceThreshold {
		flags = append(flags, domain.FlagLowConfidence)
		var target domain.Role
		switch {
		case role == domain.RoleFront && backHits:
			target = domain.RoleBack
		case role == domain.RoleBack && frontHits:
			target = domain.RoleFront
		}
		if target != "" {
			out.AdjustedRole = target
			out.Role = target
			flags = append(flags, fmt.Sprintf("role_corrected_%s_to_%s", role, target))
		}
	}

	if flags == nil {
		flags = []string{}
	}
	out.Flags = flags
	return out
}

func matchesAny(triggers []string, phrases []string) bool {
	for _, t := range triggers {
		if containsAny(strings.ToLower(t), phrases) {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	if haystack == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
