package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
)

const (
	DefaultAssignmentMinScore = 0.18
	debugTopCandidates        = 3
)

type AssignerConfig struct {
	MinScore          float64
	EmbedConcurrency  int
	MaxImagesPerGroup int
}

type AssignmentInput struct {
	Groups     []domain.Group
	Candidates []domain.Candidate
	Insights   map[string]domain.ImageInsight
	// OriginalImageSets holds, per group, the URLs the vision step proposed.
	// When empty, each group's provisional Images list is used.
	OriginalImageSets [][]string
}

type AssignmentOptions struct {
	// MinScore overrides the configured acceptance threshold when > 0.
	MinScore float64
	Debug    bool
}

type AssignmentResult struct {
	Groups    []domain.Group
	Orphans   []domain.Orphan
	DebugLogs []string
	Mode      domain.ScoringMode
}

// CandidateAssigner re-derives group membership from embeddings and
// heuristics. It is greedy per candidate with an empty-group fallback.
type CandidateAssigner struct {
	fetcher   embeddingFetcher
	minScore  float64
	maxImages int
	logger    *slog.Logger
}

func NewCandidateAssigner(
	embedder ports.Embedder,
	cfg AssignerConfig,
	logger *slog.Logger,
	observer ports.ReconcileObserver,
) *CandidateAssigner {
	if logger == nil {
		logger = slog.Default()
	}
	minScore := cfg.MinScore
	if minScore <= 0 || !isFinite(minScore) {
		minScore = DefaultAssignmentMinScore
	}
	maxImages := cfg.MaxImagesPerGroup
	if maxImages <= 0 || maxImages > domain.MaxImagesPerGroup {
		maxImages = domain.MaxImagesPerGroup
	}
	return &CandidateAssigner{
		fetcher: embeddingFetcher{
			embedder:    embedder,
			concurrency: cfg.EmbedConcurrency,
			logger:      logger,
			observer:    observer,
		},
		minScore:  minScore,
		maxImages: maxImages,
		logger:    logger,
	}
}

func (a *CandidateAssigner) Assign(ctx context.Context, in AssignmentInput, opts AssignmentOptions) AssignmentResult {
	groups := cloneGroups(in.Groups)
	candidates := normalizeCandidates(in.Candidates)
	if len(groups) == 0 || len(candidates) == 0 {
		return AssignmentResult{Groups: groups, Mode: domain.ModeHeuristics}
	}

	minScore := a.minScore
	if opts.MinScore > 0 && isFinite(opts.MinScore) {
		minScore = opts.MinScore
	}

	prompts := make([]string, len(groups))
	promptTokens := make([]map[string]struct{}, len(groups))
	for gi, g := range groups {
		prompts[gi] = g.Prompt()
		promptTokens[gi] = toTokenSet(prompts[gi])
	}
	originalSets := buildOriginalSets(groups, in.OriginalImageSets)

	cache := newEmbeddingCache()
	if a.fetcher.imagesAvailable() {
		a.fetcher.fetchText(ctx, prompts, cache)
		if len(cache.text) > 0 {
			urls := make([]string, len(candidates))
			for i, c := range candidates {
				urls[i] = c.URL
			}
			a.fetcher.fetchImages(ctx, urls, cache)
		}
	} else {
		a.logger.Debug("embeddings_skipped", "reason", "image embeddings unavailable")
	}

	mode := domain.ModeHeuristics
	mismatched := 0
	scores := make([][]float64, len(candidates))
	sims := make([][]float64, len(candidates))
	for ci, cand := range candidates {
		insight, hasInsight := in.Insights[cand.URL]
		imageVec := cache.image[cand.URL]
		scores[ci] = make([]float64, len(groups))
		sims[ci] = make([]float64, len(groups))
		for gi := range groups {
			_, inOriginal := originalSets[gi][cand.URL]
			total := heuristicAdjustment(cand, insight, hasInsight, inOriginal, promptTokens[gi])
			sims[ci][gi] = math.NaN()
			if textVec, ok := cache.text[prompts[gi]]; ok && len(imageVec) > 0 {
				sim, ok := cosineSimilarity(imageVec, textVec)
				switch {
				case !ok:
					if len(imageVec) != len(textVec) {
						mismatched++
					}
				case isFinite(sim):
					mode = domain.ModeEmbeddings
					sims[ci][gi] = sim
					total += sim
				default:
					sims[ci][gi] = sim
					total += sim
				}
			}
			scores[ci][gi] = total
		}
	}
	if mismatched > 0 {
		a.logger.Warn("embedding_dimension_mismatch",
			"pairs", mismatched,
			"hint", "text and image providers must embed into the same space",
		)
	}

	members := make([][]domain.Candidate, len(groups))
	var orphans []domain.Orphan
	for ci, cand := range candidates {
		best := bestGroup(scores[ci], nil)
		if best >= 0 && scores[ci][best] >= minScore {
			members[best] = append(members[best], cand)
			continue
		}
		orphans = append(orphans, domain.Orphan{Candidate: cand, Scores: scores[ci], Similarities: sims[ci]})
	}

	// Groups that nothing cleared the threshold for are usually products whose
	// only photos scored low everywhere; give them their best orphan.
	remaining := orphans[:0]
	for _, orphan := range orphans {
		best := bestGroup(orphan.Scores, func(gi int) bool { return len(members[gi]) == 0 })
		if best < 0 {
			remaining = append(remaining, orphan)
			continue
		}
		members[best] = append(members[best], orphan.Candidate)
	}
	orphans = remaining

	rows := make(map[string]int, len(candidates))
	for ci, cand := range candidates {
		rows[cand.URL] = ci
	}
	for gi := range groups {
		groups[gi].Images = finalizeImages(members[gi], a.maxImages)
		if len(members[gi]) <= len(groups[gi].Images) {
			continue
		}
		// Over-cap members go back to manual review instead of vanishing.
		kept := make(map[string]struct{}, len(groups[gi].Images))
		for _, img := range groups[gi].Images {
			kept[img] = struct{}{}
		}
		for _, cand := range members[gi] {
			if _, ok := kept[cand.URL]; ok {
				continue
			}
			ci := rows[cand.URL]
			orphans = append(orphans, domain.Orphan{Candidate: cand, Scores: scores[ci], Similarities: sims[ci]})
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		return orphans[i].Candidate.Index < orphans[j].Candidate.Index
	})

	var debugLogs []string
	if opts.Debug {
		debugLogs = buildDebugLogs(groups, prompts, candidates, scores)
		for _, line := range debugLogs {
			a.logger.Debug("assignment_debug", "detail", line)
		}
	}

	a.logger.Info("candidates_assigned",
		"groups", len(groups),
		"candidates", len(candidates),
		"orphans", len(orphans),
		"mode", string(mode),
		"min_score", minScore,
	)

	return AssignmentResult{
		Groups:    groups,
		Orphans:   orphans,
		DebugLogs: debugLogs,
		Mode:      mode,
	}
}

// bestGroup returns the index of the highest finite score accepted by allow,
// or -1. Ties go to the lower group index.
func bestGroup(scores []float64, allow func(int) bool) int {
	best := -1
	for gi, s := range scores {
		if !isFinite(s) {
			continue
		}
		if allow != nil && !allow(gi) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = gi
		}
	}
	return best
}

func normalizeCandidates(in []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c.URL = domain.CanonicalImageKey(c.URL)
		if c.URL == "" {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

func buildOriginalSets(groups []domain.Group, proposed [][]string) []map[string]struct{} {
	out := make([]map[string]struct{}, len(groups))
	for gi, g := range groups {
		urls := g.Images
		if len(proposed) > 0 {
			urls = nil
			if gi < len(proposed) {
				urls = proposed[gi]
			}
		}
		set := make(map[string]struct{}, len(urls))
		for _, u := range urls {
			if key := domain.CanonicalImageKey(u); key != "" {
				set[key] = struct{}{}
			}
		}
		out[gi] = set
	}
	return out
}

// finalizeImages orders members by ingestion order, dedupes canonical URLs
// and applies the per-group cap.
func finalizeImages(members []domain.Candidate, limit int) []string {
	sorted := append([]domain.Candidate(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].Index < sorted[j].Index
	})

	out := make([]string, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, c := range sorted {
		key := domain.CanonicalImageKey(c.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func buildDebugLogs(groups []domain.Group, prompts []string, candidates []domain.Candidate, scores [][]float64) []string {
	logs := make([]string, 0, len(groups))
	for gi, g := range groups {
		idx := make([]int, 0, len(candidates))
		for ci := range candidates {
			if isFinite(scores[ci][gi]) {
				idx = append(idx, ci)
			}
		}
		sort.SliceStable(idx, func(i, j int) bool {
			return scores[idx[i]][gi] > scores[idx[j]][gi]
		})
		if len(idx) > debugTopCandidates {
			idx = idx[:debugTopCandidates]
		}

		top := make([]string, 0, len(idx))
		for _, ci := range idx {
			rounded := math.Round(scores[ci][gi]*1e4) / 1e4
			top = append(top, fmt.Sprintf("%s=%.4f", candidates[ci].URL, rounded))
		}
		logs = append(logs, fmt.Sprintf("group=%s prompt=%q top=[%s]", g.GroupID, prompts[gi], strings.Join(top, ", ")))
	}
	return logs
}

func cloneGroups(in []domain.Group) []domain.Group {
	out := make([]domain.Group, len(in))
	for i, g := range in {
		out[i] = g.Clone()
	}
	return out
}
