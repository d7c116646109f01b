package usecase

import (
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

func TestComputeRoleConfidenceCorrectsContradictedFront(t *testing.T) {
	rc := ComputeRoleConfidence(domain.ImageInsight{
		Role:             domain.RoleFront,
		RoleScore:        0.3,
		EvidenceTriggers: []string{"Nutrition Facts", "Directions for use"},
	})

	if rc.Confidence >= domain.LowConfidenceThreshold {
		t.Fatalf("expected confidence below threshold, got %.2f", rc.Confidence)
	}
	if rc.AdjustedRole != domain.RoleBack || rc.Role != domain.RoleBack {
		t.Fatalf("expected role corrected to back, got role=%s adjusted=%s", rc.Role, rc.AdjustedRole)
	}
	for _, flag := range []string{domain.FlagLowConfidence, domain.FlagBackIndicatorsOnFrontLabel, "role_corrected_front_to_back"} {
		if !rc.HasFlag(flag) {
			t.Fatalf("expected flag %s, got %v", flag, rc.Flags)
		}
	}
}

func TestComputeRoleConfidenceNoCorrectionWhenConfident(t *testing.T) {
	rc := ComputeRoleConfidence(domain.ImageInsight{
		Role:             domain.RoleFront,
		RoleScore:        0.9,
		EvidenceTriggers: []string{"Supplement Facts"},
	})
	if rc.AdjustedRole != "" || rc.Role != domain.RoleFront {
		t.Fatalf("correction must not fire at confidence %.2f", rc.Confidence)
	}
	if !rc.HasFlag(domain.FlagBackIndicatorsOnFrontLabel) {
		t.Fatalf("expected contradiction flag, got %v", rc.Flags)
	}
}

func TestComputeRoleConfidenceNoCorrectionWithoutEvidence(t *testing.T) {
	rc := ComputeRoleConfidence(domain.ImageInsight{Role: domain.RoleBack, RoleScore: 0.1})
	if rc.AdjustedRole != "" {
		t.Fatalf("expected no correction without contradicting evidence, got %s", rc.AdjustedRole)
	}
	if !rc.HasFlag(domain.FlagLowConfidence) || !rc.HasFlag(domain.FlagLowTextForBack) {
		t.Fatalf("unexpected flags: %v", rc.Flags)
	}
}

func TestComputeRoleConfidenceDefaultsAndBounds(t *testing.T) {
	cases := []struct {
		name string
		in   domain.ImageInsight
		role domain.Role
		want float64
	}{
		{name: "missing role", in: domain.ImageInsight{RoleScore: 0.5}, role: domain.RoleOther, want: 0.5},
		{name: "negative score", in: domain.ImageInsight{Role: domain.RoleSide, RoleScore: -0.7}, role: domain.RoleSide, want: 0.7},
		{name: "score above one", in: domain.ImageInsight{Role: domain.RoleDetail, RoleScore: 3}, role: domain.RoleDetail, want: 1},
		{name: "nan score", in: domain.ImageInsight{Role: domain.RoleSide, RoleScore: math.NaN()}, role: domain.RoleSide, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := ComputeRoleConfidence(tc.in)
			if rc.Role != tc.role {
				t.Fatalf("expected role %s, got %s", tc.role, rc.Role)
			}
			if math.Abs(rc.Confidence-tc.want) > 1e-9 {
				t.Fatalf("expected confidence %.2f, got %.4f", tc.want, rc.Confidence)
			}
			if rc.Flags == nil {
				t.Fatalf("flags must never be nil")
			}
		})
	}
}

func TestComputeRoleConfidenceFrontSignals(t *testing.T) {
	base := domain.ImageInsight{Role: domain.RoleFront, RoleScore: 0.5}

	boosted := base
	boosted.DominantColor = "White"
	boosted.VisualDescription = "Bottle centered, facing the camera"
	boosted.EvidenceTriggers = []string{"Brand logo"}
	boosted.OCRText = "ACME Whey Protein Chocolate 2lb"

	if got, plain := ComputeRoleConfidence(boosted).Confidence, ComputeRoleConfidence(base).Confidence; got <= plain {
		t.Fatalf("expected front signals to raise confidence: %.2f <= %.2f", got, plain)
	}

	rotated := base
	rotated.VisualDescription = "Jar photographed at an angle"
	rc := ComputeRoleConfidence(rotated)
	if !rc.HasFlag(domain.FlagRotatedImageMarkedAsFront) || rc.Confidence >= 0.5 {
		t.Fatalf("expected rotation penalty, got %.2f %v", rc.Confidence, rc.Flags)
	}

	wordy := base
	wordy.Text = strings.Repeat("ingredient list ", 30)
	rc = ComputeRoleConfidence(wordy)
	if !rc.HasFlag(domain.FlagExcessiveTextForFront) {
		t.Fatalf("expected excessive text flag, got %v", rc.Flags)
	}
}

func TestComputeRoleConfidenceFullWrapFlag(t *testing.T) {
	wrap := "360 full wrap label visible"
	if rc := ComputeRoleConfidence(domain.ImageInsight{Role: domain.RoleSide, RoleScore: 0.6, VisualDescription: wrap}); !rc.HasFlag(domain.FlagFullWrapLabelDetected) {
		t.Fatalf("expected full wrap flag for side, got %v", rc.Flags)
	}
	if rc := ComputeRoleConfidence(domain.ImageInsight{Role: domain.RoleLabel, RoleScore: 0.6, VisualDescription: wrap}); rc.HasFlag(domain.FlagFullWrapLabelDetected) {
		t.Fatalf("label role must not be flagged, got %v", rc.Flags)
	}
}

func TestRoleScorerScoreBatchKeys(t *testing.T) {
	scorer := NewRoleScorer()
	out := scorer.ScoreBatch([]domain.ImageInsight{
		{Key: "a", Role: domain.RoleFront, RoleScore: 0.8},
		{AltKey: "b", Role: domain.RoleBack, RoleScore: 0.8},
		{URLKey: "c", Role: domain.RoleSide, RoleScore: 0.8},
		{URL: "d", Role: domain.RoleDetail, RoleScore: 0.8},
		{Role: domain.RoleFront, RoleScore: 0.9},
	})
	if len(out) != 4 {
		t.Fatalf("expected 4 keyed results, got %d", len(out))
	}
	for _, key := range []string{"a", "b", "c", "d"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
}
