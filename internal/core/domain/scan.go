package domain

import "time"

type ScanStatus string

const (
	ScanQueued     ScanStatus = "queued"
	ScanProcessing ScanStatus = "processing"
	ScanReady      ScanStatus = "ready"
	ScanFailed     ScanStatus = "failed"
)

type ScoringMode string

const (
	ModeEmbeddings ScoringMode = "embeddings"
	ModeHeuristics ScoringMode = "heuristics"
)

// ScanOptions are per-request overrides; zero values fall back to service config.
type ScanOptions struct {
	MinScore       float64 `json:"minScore,omitempty"`
	OrphanMinScore float64 `json:"orphanMinScore,omitempty"`
	Debug          bool    `json:"debug,omitempty"`
}

// ScanRequest is the output of the upstream vision analysis for one lot.
type ScanRequest struct {
	Groups        []Group       `json:"groups"`
	Images        []ImageSource `json:"images"`
	ImageInsights InsightSet    `json:"imageInsights"`
	Options       ScanOptions   `json:"options"`
}

// ResultGroup is a reconciled product with its picked listing images.
type ResultGroup struct {
	Group
	HeroImage  string `json:"heroImage,omitempty"`
	LabelImage string `json:"labelImage,omitempty"`
}

type ScanResult struct {
	Groups        []ResultGroup             `json:"groups"`
	Roles         map[string]RoleConfidence `json:"roles"`
	CrossChecks   []CrossCheckResult        `json:"crossChecks"`
	Reassignments []OrphanReassignment      `json:"reassignments"`
	Orphans       []string                  `json:"orphans"`
	DebugLogs     []string                  `json:"debugLogs,omitempty"`
	Mode          ScoringMode               `json:"mode"`
}

// Scan is the persisted state of an asynchronous reconciliation job.
type Scan struct {
	ID          string      `json:"id"`
	Status      ScanStatus  `json:"status"`
	ImageCount  int         `json:"image_count"`
	GroupCount  int         `json:"group_count"`
	StoragePath string      `json:"storage_path"`
	Result      *ScanResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
