package usecase

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// DefaultOrphanMinScore is deliberately below DefaultAssignmentMinScore: this
// pass exists to shrink the manual-review pile.
const DefaultOrphanMinScore = 0.10

const (
	orphanNameTokenWeight     = 0.03
	orphanEvidenceTokenWeight = 0.03
	orphanOCRTokenWeight      = 0.04
	orphanTokenCap            = 3
	orphanSharedFolderBonus   = 0.06
	orphanSharedColorBonus    = 0.05
	orphanMissingBackBonus    = 0.04
)

type OrphanConfig struct {
	MinScore          float64
	MaxImagesPerGroup int
}

type OrphanOptions struct {
	// MinScore overrides the configured threshold when > 0.
	MinScore float64
	// Folders maps canonical image keys of already-grouped images to their
	// upload folder, so an orphan can be matched to its folder siblings.
	Folders map[string]string
}

// OrphanReassigner is the relaxed second-chance pass over unclaimed images.
type OrphanReassigner struct {
	minScore  float64
	maxImages int
	logger    *slog.Logger
}

func NewOrphanReassigner(cfg OrphanConfig, logger *slog.Logger) *OrphanReassigner {
	if logger == nil {
		logger = slog.Default()
	}
	minScore := cfg.MinScore
	if minScore <= 0 || !isFinite(minScore) {
		minScore = DefaultOrphanMinScore
	}
	maxImages := cfg.MaxImagesPerGroup
	if maxImages <= 0 || maxImages > domain.MaxImagesPerGroup {
		maxImages = domain.MaxImagesPerGroup
	}
	return &OrphanReassigner{minScore: minScore, maxImages: maxImages, logger: logger}
}

type groupContext struct {
	tokens  map[string]struct{}
	folders map[string]struct{}
	colors  map[string]struct{}
	hasBack bool
	size    int
}

// Reassign returns one entry per orphan that cleared the relaxed threshold.
// Orphans are visited in candidate order; each accepted match counts toward
// the target group's context and cap for later orphans. Groups are not
// modified; callers apply the returned reassignments.
func (r *OrphanReassigner) Reassign(
	orphans []domain.Orphan,
	groups []domain.Group,
	insights map[string]domain.ImageInsight,
	opts OrphanOptions,
) []domain.OrphanReassignment {
	out := []domain.OrphanReassignment{}
	if len(orphans) == 0 || len(groups) == 0 {
		return out
	}

	minScore := r.minScore
	if opts.MinScore > 0 && isFinite(opts.MinScore) {
		minScore = opts.MinScore
	}

	folders := make(map[string]string, len(opts.Folders)+len(orphans))
	for k, v := range opts.Folders {
		folders[domain.CanonicalImageKey(k)] = v
	}
	for _, o := range orphans {
		if o.Candidate.Folder != "" {
			folders[domain.CanonicalImageKey(o.Candidate.URL)] = o.Candidate.Folder
		}
	}

	contexts := make([]*groupContext, len(groups))
	for gi, g := range groups {
		gctx := &groupContext{
			tokens:  toTokenSet(g.Prompt()),
			folders: make(map[string]struct{}),
			colors:  make(map[string]struct{}),
		}
		for _, img := range g.Images {
			gctx.absorb(domain.CanonicalImageKey(img), insights, folders)
		}
		contexts[gi] = gctx
	}

	for _, orphan := range orphans {
		key := domain.CanonicalImageKey(orphan.Candidate.URL)
		if key == "" {
			continue
		}
		insight, hasInsight := insights[key]

		bestIdx := -1
		bestScore := 0.0
		var bestReasons []string
		for gi := range groups {
			if contexts[gi].size >= r.maxImages {
				continue
			}
			score, reasons := scoreOrphan(orphan, gi, insight, hasInsight, contexts[gi])
			if !isFinite(score) {
				continue
			}
			if bestIdx < 0 || score > bestScore {
				bestIdx, bestScore, bestReasons = gi, score, reasons
			}
		}

		if bestIdx < 0 || bestScore < minScore {
			r.logger.Debug("orphan_unmatched", "image", key, "best_score", bestScore)
			continue
		}

		reason := strings.Join(bestReasons, "; ")
		if reason == "" {
			reason = "closest group above relaxed threshold"
		}
		out = append(out, domain.OrphanReassignment{
			OrphanKey:      key,
			MatchedGroupID: groups[bestIdx].GroupID,
			Confidence:     clamp01(bestScore),
			Reason:         reason,
		})
		contexts[bestIdx].absorb(key, insights, folders)
	}

	r.logger.Info("orphans_reassigned", "orphans", len(orphans), "reassigned", len(out), "min_score", minScore)
	return out
}

func (c *groupContext) absorb(key string, insights map[string]domain.ImageInsight, folders map[string]string) {
	c.size++
	if folder := strings.ToLower(strings.TrimSpace(folders[key])); folder != "" {
		c.folders[folder] = struct{}{}
	}
	in, ok := insights[key]
	if !ok {
		return
	}
	if color := strings.ToLower(strings.TrimSpace(in.DominantColor)); color != "" {
		c.colors[color] = struct{}{}
	}
	if in.Role == domain.RoleBack || in.Role == domain.RoleLabel {
		c.hasBack = true
	}
}

func scoreOrphan(
	orphan domain.Orphan,
	gi int,
	insight domain.ImageInsight,
	hasInsight bool,
	gctx *groupContext,
) (float64, []string) {
	score := 0.0
	var reasons []string

	if gi < len(orphan.Similarities) {
		sim := orphan.Similarities[gi]
		if !math.IsNaN(sim) {
			if !isFinite(sim) {
				return sim, nil
			}
			score += sim
			reasons = append(reasons, "embedding similarity "+strconv.FormatFloat(sim, 'f', 2, 64))
		}
	}

	if n := countTokenMatches(gctx.tokens, candidateTokens(orphan.Candidate), orphanTokenCap); n > 0 {
		score += float64(n) * orphanNameTokenWeight
		reasons = append(reasons, "filename/folder tokens match group")
	}
	if hasPlaceholderName(orphan.Candidate.Name) {
		score += placeholderPenalty
		reasons = append(reasons, "placeholder filename")
	}
	if folder := strings.ToLower(orphan.Candidate.Folder); folder != "" {
		if _, ok := gctx.folders[folder]; ok {
			score += orphanSharedFolderBonus
			reasons = append(reasons, "shares folder "+orphan.Candidate.Folder)
		}
	}

	if !hasInsight {
		return score, reasons
	}

	if n := countTokenMatches(gctx.tokens, toTokenSet(strings.Join(insight.EvidenceTriggers, " ")), orphanTokenCap); n > 0 {
		score += float64(n) * orphanEvidenceTokenWeight
		reasons = append(reasons, "evidence triggers match group")
	}
	if n := countTokenMatches(gctx.tokens, toTokenSet(insight.ConsolidatedText()), orphanTokenCap); n > 0 {
		score += float64(n) * orphanOCRTokenWeight
		reasons = append(reasons, "label text mentions group")
	}
	if color := strings.ToLower(strings.TrimSpace(insight.DominantColor)); color != "" && !isPlainBackground(color) {
		if _, ok := gctx.colors[color]; ok {
			score += orphanSharedColorBonus
			reasons = append(reasons, "matches group color "+color)
		}
	}
	if (insight.Role == domain.RoleBack || insight.Role == domain.RoleLabel) && !gctx.hasBack && gctx.size > 0 {
		score += orphanMissingBackBonus
		reasons = append(reasons, string(insight.Role)+" panel fills missing back")
	}
	return score, reasons
}
