// Package snapshot materializes the read-only view of users, profiles,
// jobs, enrichment and recent applications for one batch date.
//
// The snapshot is loaded once per run and shared by reference across all
// workers; nothing in it is mutated after Load returns.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/digest-service/internal/model"
)

// ErrDataUnavailable signals that the underlying store could not be read.
// The orchestrator treats it as fatal for the whole run: a partial
// snapshot is not usable.
var ErrDataUnavailable = errors.New("snapshot data unavailable")

// Snapshot is the immutable per-run view of the matching inputs.
type Snapshot struct {
	BatchDate time.Time
	Users     []model.User
	Jobs      []model.Job

	profiles   map[string]*model.UserProfile
	enrichment map[string]*model.JobEnrichment
	recentApps map[string][]model.RecentApplication
}

// Profile returns the user's profile, or nil when none exists.
func (s *Snapshot) Profile(userID string) *model.UserProfile {
	return s.profiles[userID]
}

// Enrichment returns the per-job enrichment lookup, keyed by job ID.
func (s *Snapshot) Enrichment() map[string]*model.JobEnrichment {
	return s.enrichment
}

// RecentApplications returns the user's recent-application facts.
func (s *Snapshot) RecentApplications(userID string) []model.RecentApplication {
	return s.recentApps[userID]
}

// Loader reads the snapshot from PostgreSQL.
type Loader struct {
	pool *pgxpool.Pool
}

// NewLoader returns a Loader backed by the given pool.
func NewLoader(pool *pgxpool.Pool) *Loader {
	return &Loader{pool: pool}
}

// Load reads all matching inputs for batchDate. Any read failure aborts
// with ErrDataUnavailable; no side effects beyond read I/O.
func (l *Loader) Load(ctx context.Context, batchDate time.Time) (*Snapshot, error) {
	snap := &Snapshot{BatchDate: batchDate}

	var err error
	if snap.Users, err = l.loadUsers(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if snap.profiles, err = l.loadProfiles(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if snap.Jobs, err = l.loadJobs(ctx, batchDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if snap.enrichment, err = l.loadEnrichment(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if snap.recentApps, err = l.loadRecentApplications(ctx, batchDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	log.Printf("[loader] Snapshot for %s — users=%d jobs=%d enriched=%d",
		batchDate.Format("2006-01-02"), len(snap.Users), len(snap.Jobs), len(snap.enrichment))
	return snap, nil
}

func (l *Loader) loadUsers(ctx context.Context) ([]model.User, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, email, home_lat, home_lon
		 FROM users
		 WHERE is_subscribed = true AND is_active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u := model.User{Subscribed: true, Active: true}
		if err := rows.Scan(&u.ID, &u.Email, &u.HomeLat, &u.HomeLon); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (l *Loader) loadProfiles(ctx context.Context) (map[string]*model.UserProfile, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT user_id, category_weights, salary_floor, radius_km, cluster_id, latent_factors
		 FROM user_profiles`,
	)
	if err != nil {
		return nil, fmt.Errorf("query user_profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]*model.UserProfile)
	for rows.Next() {
		var p model.UserProfile
		if err := rows.Scan(
			&p.UserID, &p.CategoryWeights, &p.SalaryFloor,
			&p.RadiusKm, &p.ClusterID, &p.LatentFactors,
		); err != nil {
			return nil, fmt.Errorf("scan user_profile: %w", err)
		}
		profiles[p.UserID] = &p
	}
	return profiles, rows.Err()
}

func (l *Loader) loadJobs(ctx context.Context, batchDate time.Time) ([]model.Job, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, employer_id, title, category_code, city_code, lat, lon,
		        salary_min, salary_max, employment_type, is_remote, keywords,
		        is_active, expires_at
		 FROM jobs
		 WHERE is_active = true AND expires_at >= $1`,
		batchDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID, &j.EmployerID, &j.Title, &j.CategoryCode, &j.CityCode,
			&j.Lat, &j.Lon, &j.SalaryMin, &j.SalaryMax, &j.EmploymentType,
			&j.Remote, &j.Keywords, &j.Active, &j.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (l *Loader) loadEnrichment(ctx context.Context) (map[string]*model.JobEnrichment, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT je.job_id, je.basic_score, je.seo_score, je.personalized_score_base,
		        je.composite_score, je.matched_keywords, je.embedding
		 FROM job_enrichment je
		 JOIN jobs j ON j.id = je.job_id
		 WHERE j.is_active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query job_enrichment: %w", err)
	}
	defer rows.Close()

	enrichment := make(map[string]*model.JobEnrichment)
	for rows.Next() {
		var e model.JobEnrichment
		if err := rows.Scan(
			&e.JobID, &e.BasicScore, &e.SEOScore, &e.PersonalizedBase,
			&e.CompositeScore, &e.MatchedKeywords, &e.Embedding,
		); err != nil {
			return nil, fmt.Errorf("scan job_enrichment: %w", err)
		}
		enrichment[e.JobID] = &e
	}
	return enrichment, rows.Err()
}

func (l *Loader) loadRecentApplications(ctx context.Context, batchDate time.Time) (map[string][]model.RecentApplication, error) {
	// Only the 14-day exclusion window is relevant; older facts are noise.
	rows, err := l.pool.Query(ctx,
		`SELECT user_id, employer_id, last_applied_at
		 FROM recent_applications
		 WHERE last_applied_at >= $1`,
		batchDate.AddDate(0, 0, -14),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent_applications: %w", err)
	}
	defer rows.Close()

	apps := make(map[string][]model.RecentApplication)
	for rows.Next() {
		var a model.RecentApplication
		if err := rows.Scan(&a.UserID, &a.EmployerID, &a.LastAppliedAt); err != nil {
			return nil, fmt.Errorf("scan recent_application: %w", err)
		}
		apps[a.UserID] = append(apps[a.UserID], a)
	}
	return apps, rows.Err()
}

// NewSnapshot builds a snapshot from in-memory data. Used by tests and by
// any caller that wants to drive the pipeline without a database.
func NewSnapshot(
	batchDate time.Time,
	users []model.User,
	profiles map[string]*model.UserProfile,
	jobs []model.Job,
	enrichment map[string]*model.JobEnrichment,
	recentApps map[string][]model.RecentApplication,
) *Snapshot {
	return &Snapshot{
		BatchDate:  batchDate,
		Users:      users,
		Jobs:       jobs,
		profiles:   profiles,
		enrichment: enrichment,
		recentApps: recentApps,
	}
}
