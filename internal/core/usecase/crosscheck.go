package usecase

import (
	"fmt"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// CrossCheck resolves front conflicts inside one group. Keys missing from
// confidences are ignored. Equal confidences keep the earlier key.
func CrossCheck(groupID string, imageKeys []string, confidences map[string]domain.RoleConfidence) domain.CrossCheckResult {
	result := domain.CrossCheckResult{GroupID: groupID, Corrections: []domain.RoleCorrection{}}

	var fronts, sides []string
	for _, key := range imageKeys {
		rc, ok := confidences[key]
		if !ok {
			continue
		}
		switch rc.Role {
		case domain.RoleFront:
			fronts = append(fronts, key)
		case domain.RoleSide:
			sides = append(sides, key)
		}
	}

	switch {
	case len(fronts) > 1:
		keep := highestConfidence(fronts, confidences)
		kept := confidences[keep].Confidence
		for _, key := range fronts {
			if key == keep {
				continue
			}
			result.Corrections = append(result.Corrections, domain.RoleCorrection{
				ImageKey:      key,
				OriginalRole:  domain.RoleFront,
				CorrectedRole: domain.RoleSide,
				Reason: fmt.Sprintf(
					"Multiple fronts detected; kept %s (confidence %.2f) over this image (confidence %.2f)",
					keep, kept, confidences[key].Confidence,
				),
			})
		}
	case len(fronts) == 0 && len(sides) > 0:
		promote := highestConfidence(sides, confidences)
		result.Corrections = append(result.Corrections, domain.RoleCorrection{
			ImageKey:      promote,
			OriginalRole:  domain.RoleSide,
			CorrectedRole: domain.RoleFront,
			Reason: fmt.Sprintf(
				"No front detected; promoted side image with confidence %.2f",
				confidences[promote].Confidence,
			),
		})
	}
	return result
}

func highestConfidence(keys []string, confidences map[string]domain.RoleConfidence) string {
	best := keys[0]
	for _, key := range keys[1:] {
		if confidences[key].Confidence > confidences[best].Confidence {
			best = key
		}
	}
	return best
}

// ApplyCorrections returns a copy of confidences with every corrected role
// written back. The input map is not modified.
func ApplyCorrections(confidences map[string]domain.RoleConfidence, results ...domain.CrossCheckResult) map[string]domain.RoleConfidence {
	out := make(map[string]domain.RoleConfidence, len(confidences))
	for k, v := range confidences {
		out[k] = v
	}
	for _, res := range results {
		for _, c := range res.Corrections {
			rc, ok := out[c.ImageKey]
			if !ok {
				continue
			}
			rc.Role = c.CorrectedRole
			rc.Flags = append(append([]string(nil), rc.Flags...), fmt.Sprintf("crosscheck_%s_to_%s", c.OriginalRole, c.CorrectedRole))
			out[c.ImageKey] = rc
		}
	}
	return out
}
