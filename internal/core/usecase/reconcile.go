package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
)

type ReconcileConfig struct {
	Assigner AssignerConfig
	Orphans  OrphanConfig
	// Debug forces assignment debug logs for every scan.
	Debug bool
}

// ReconcileUseCase runs assignment, role scoring, cross-checking and orphan
// reassignment for one scan.
type ReconcileUseCase struct {
	assigner   *CandidateAssigner
	scorer     *RoleScorer
	reassigner *OrphanReassigner
	observer   ports.ReconcileObserver
	debug      bool
	maxImages  int
	logger     *slog.Logger
}

func NewReconcileUseCase(
	embedder ports.Embedder,
	cfg ReconcileConfig,
	logger *slog.Logger,
	observer ports.ReconcileObserver,
) *ReconcileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	assigner := NewCandidateAssigner(embedder, cfg.Assigner, logger, observer)
	return &ReconcileUseCase{
		assigner:   assigner,
		scorer:     NewRoleScorer(),
		reassigner: NewOrphanReassigner(cfg.Orphans, logger),
		observer:   observer,
		debug:      cfg.Debug,
		maxImages:  assigner.maxImages,
		logger:     logger,
	}
}

// Reconcile never fails on malformed upstream data; it only returns an error
// when ctx is already done.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	insights := domain.BuildInsightMap(req.ImageInsights)
	sources := req.Images
	if len(sources) == 0 {
		sources = sourcesFromGroups(req.Groups)
	}
	candidates := domain.NewCandidates(sources)

	assigned := uc.assigner.Assign(ctx, AssignmentInput{
		Groups:     req.Groups,
		Candidates: candidates,
		Insights:   insights,
	}, AssignmentOptions{
		MinScore: req.Options.MinScore,
		Debug:    req.Options.Debug || uc.debug,
	})
	groups := assigned.Groups

	roles := uc.scoreCandidates(candidates, insights)

	crossChecks := make([]domain.CrossCheckResult, 0, len(groups))
	for _, g := range groups {
		crossChecks = append(crossChecks, CrossCheck(g.GroupID, g.Images, roles))
	}
	roles = ApplyCorrections(roles, crossChecks...)

	folders := make(map[string]string, len(candidates))
	byKey := make(map[string]domain.Candidate, len(candidates))
	for _, c := range candidates {
		byKey[c.URL] = c
		if c.Folder != "" {
			folders[c.URL] = c.Folder
		}
	}

	reassignments := uc.reassigner.Reassign(assigned.Orphans, groups, insights, OrphanOptions{
		MinScore: req.Options.OrphanMinScore,
		Folders:  folders,
	})

	reassigned := make(map[string]struct{}, len(reassignments))
	touched := make(map[string]struct{})
	for _, ra := range reassignments {
		for gi := range groups {
			if groups[gi].GroupID != ra.MatchedGroupID {
				continue
			}
			groups[gi].Images = append(groups[gi].Images, ra.OrphanKey)
			touched[groups[gi].GroupID] = struct{}{}
			reassigned[ra.OrphanKey] = struct{}{}
			break
		}
	}

	for gi := range groups {
		if _, ok := touched[groups[gi].GroupID]; !ok {
			continue
		}
		members := make([]domain.Candidate, 0, len(groups[gi].Images))
		for _, img := range groups[gi].Images {
			if c, ok := byKey[img]; ok {
				members = append(members, c)
			}
		}
		groups[gi].Images = finalizeImages(members, uc.maxImages)

		check := CrossCheck(groups[gi].GroupID, groups[gi].Images, roles)
		if len(check.Corrections) > 0 {
			crossChecks = append(crossChecks, check)
			roles = ApplyCorrections(roles, check)
		}
	}

	orphanKeys := make([]string, 0, len(assigned.Orphans))
	for _, o := range assigned.Orphans {
		if _, ok := reassigned[o.Candidate.URL]; ok {
			continue
		}
		orphanKeys = append(orphanKeys, o.Candidate.URL)
	}

	resultGroups := make([]domain.ResultGroup, 0, len(groups))
	assignedCount := 0
	correctionCount := 0
	for _, g := range groups {
		assignedCount += len(g.Images)
		resultGroups = append(resultGroups, domain.ResultGroup{
			Group:      g,
			HeroImage:  pickHeroImage(g.Images, roles),
			LabelImage: pickLabelImage(g.Images, roles),
		})
	}
	for _, cc := range crossChecks {
		correctionCount += len(cc.Corrections)
	}

	if uc.observer != nil {
		uc.observer.ObserveReconcile(assigned.Mode, time.Since(start), assignedCount, len(orphanKeys), correctionCount, len(reassignments))
	}
	uc.logger.Info("reconcile_completed",
		"groups", len(groups),
		"candidates", len(candidates),
		"assigned", assignedCount,
		"orphans", len(orphanKeys),
		"corrections", correctionCount,
		"reassignments", len(reassignments),
		"mode", string(assigned.Mode),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	return &domain.ScanResult{
		Groups:        resultGroups,
		Roles:         roles,
		CrossChecks:   crossChecks,
		Reassignments: reassignments,
		Orphans:       orphanKeys,
		DebugLogs:     assigned.DebugLogs,
		Mode:          assigned.Mode,
	}, nil
}

func (uc *ReconcileUseCase) scoreCandidates(candidates []domain.Candidate, insights map[string]domain.ImageInsight) map[string]domain.RoleConfidence {
	batch := make([]domain.ImageInsight, 0, len(candidates))
	for _, c := range candidates {
		in, ok := insights[c.URL]
		if !ok {
			in = domain.ImageInsight{URL: c.URL}
		}
		in.Key = c.URL
		batch = append(batch, in)
	}
	return uc.scorer.ScoreBatch(batch)
}

func sourcesFromGroups(groups []domain.Group) []domain.ImageSource {
	var out []domain.ImageSource
	for _, g := range groups {
		for _, img := range g.Images {
			out = append(out, domain.ImageSource{URL: img})
		}
	}
	return out
}

func pickHeroImage(images []string, roles map[string]domain.RoleConfidence) string {
	if hero := bestWithRole(images, roles, domain.RoleFront); hero != "" {
		return hero
	}
	if len(images) > 0 {
		return images[0]
	}
	return ""
}

func pickLabelImage(images []string, roles map[string]domain.RoleConfidence) string {
	if label := bestWithRole(images, roles, domain.RoleBack); label != "" {
		return label
	}
	return bestWithRole(images, roles, domain.RoleLabel)
}

func bestWithRole(images []string, roles map[string]domain.RoleConfidence, role domain.Role) string {
	matching := make([]string, 0, len(images))
	for _, img := range images {
		if rc, ok := roles[img]; ok && rc.Role == role {
			matching = append(matching, img)
		}
	}
	if len(matching) == 0 {
		return ""
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return roles[matching[i]].Confidence > roles[matching[j]].Confidence
	})
	return matching[0]
}
