package domain

// Role-confidence flags.
const (
	FlagExcessiveTextForFront      = "excessive_text_for_front"
	FlagLowTextForBack             = "low_text_for_back"
	FlagBackIndicatorsOnFrontLabel = "back_indicators_on_front_label"
	FlagFrontIndicatorsOnBackLabel = "front_indicators_on_back_label"
	FlagFullWrapLabelDetected      = "full_wrap_label_detected"
	FlagRotatedImageMarkedAsFront  = "rotated_image_marked_as_front"
	FlagLowConfidence              = "low_confidence"
)

// LowConfidenceThreshold separates trusted role judgements from ones that may
// be corrected.
const LowConfidenceThreshold = 0.4

// RoleConfidence is the scored role judgement for one image.
type RoleConfidence struct {
	Role         Role     `json:"role"`
	Confidence   float64  `json:"confidence"`
	Flags        []string `json:"flags"`
	AdjustedRole Role     `json:"adjustedRole,omitempty"`
}

func (rc RoleConfidence) HasFlag(flag string) bool {
	for _, f := range rc.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

type RoleCorrection struct {
	ImageKey      string `json:"imageKey"`
	OriginalRole  Role   `json:"originalRole"`
	CorrectedRole Role   `json:"correctedRole"`
	Reason        string `json:"reason"`
}

type CrossCheckResult struct {
	GroupID     string           `json:"groupId"`
	Corrections []RoleCorrection `json:"corrections"`
}
