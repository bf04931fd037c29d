// Package model defines shared data structures for the digest service.
//
// All entities except Mapping, DailyPick and BatchRun are read-only
// snapshots owned by other subsystems (profile updater, enrichment
// pipeline, application tracker). They are loaded once per batch run and
// never mutated afterwards.
package model

import "time"

// User mirrors the users table columns relevant to matching.
type User struct {
	ID         string
	Email      string
	HomeLat    float64
	HomeLon    float64
	Subscribed bool
	Active     bool
}

// UserProfile holds the precomputed preference features for one user.
// Refreshed asynchronously by the profile updater; read-only during a run.
type UserProfile struct {
	UserID          string
	CategoryWeights map[string]float64 // category code → interest weight in [0,1]
	SalaryFloor     int
	RadiusKm        float64
	ClusterID       int
	LatentFactors   []float64 // fixed-length collaborative-filtering vector
}

// Employment type codes mirror the employment_type enum in PostgreSQL.
const (
	EmploymentFullTime   = "FULL_TIME"
	EmploymentPartTime   = "PART_TIME"
	EmploymentContract   = "CONTRACT"
	EmploymentTemp       = "TEMP"
	EmploymentInternship = "INTERNSHIP"
)

// Job mirrors an active job posting row.
type Job struct {
	ID             string
	EmployerID     string
	Title          string
	CategoryCode   string
	CityCode       string
	Lat            float64
	Lon            float64
	SalaryMin      int
	SalaryMax      int
	EmploymentType string
	Remote         bool // remote-capable postings bypass the radius filter
	Keywords       []string
	Active         bool
	ExpiresAt      time.Time
}

// JobEnrichment holds precomputed scoring features, one-to-one with Job.
// Owned by the enrichment pipeline; read-only here.
type JobEnrichment struct {
	JobID            string
	BasicScore       float64
	SEOScore         float64
	PersonalizedBase float64
	CompositeScore   float64 // precomputed, used only for cheap pre-selection
	MatchedKeywords  []string
	Embedding        []float64 // same dimensionality as UserProfile.LatentFactors
}

// RecentApplication records that a user applied to an employer.
// Used purely as an exclusion filter; relevant for 14 days.
type RecentApplication struct {
	UserID        string
	EmployerID    string
	LastAppliedAt time.Time
}

// ScoreComponents are the three sub-scores feeding the composite,
// each clamped to [0, 100].
type ScoreComponents struct {
	Basic        float64 `json:"basic"`
	SEO          float64 `json:"seo"`
	Personalized float64 `json:"personalized"`
}

// Mapping is the persisted score record for one scored (user, job) pair.
// Unique per (UserID, JobID, BatchDate).
type Mapping struct {
	UserID         string
	JobID          string
	BatchDate      time.Time
	CompositeScore float64
	Components     ScoreComponents
	Rank           int // 1-based position in the user's full scored ordering
}

// DailyPick is one selected digest entry.
// Unique per (UserID, JobID, BatchDate); at most 40 per (UserID, BatchDate).
type DailyPick struct {
	UserID       string
	JobID        string
	BatchDate    time.Time
	Section      string
	SectionRank  int // 1..N, contiguous within the section
	SectionOrder int // fixed position of the section in the digest layout
}

// UserError is one structured entry in a run's error log.
type UserError struct {
	UserID  string    `json:"userId"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// BatchRun mirrors the batch_jobs table row for one matching run.
// State transitions are owned exclusively by the orchestrator.
type BatchRun struct {
	ID               string      `json:"id"`
	BatchDate        time.Time   `json:"batchDate"`
	Status           string      `json:"status"`
	TotalRecords     int         `json:"totalRecords"`
	ProcessedRecords int         `json:"processedRecords"`
	SuccessCount     int         `json:"successCount"`
	ErrorCount       int         `json:"errorCount"`
	LastErrorMessage *string     `json:"lastErrorMessage"`
	ErrorLogs        []UserError `json:"errorLogs"`
	StartedAt        *time.Time  `json:"startedAt"`
	FinishedAt       *time.Time  `json:"finishedAt"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}
