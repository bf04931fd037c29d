package matching

import (
	"sort"
	"time"

	"jobmate/digest-service/internal/model"
)

// DefaultCandidateCap bounds the scoring cost per user.
const DefaultCandidateCap = 500

// Fourteen days — how long a recent application excludes an employer.
const exclusionWindow = 14 * 24 * time.Hour

// validEmploymentTypes flags which employment_type codes are eligible for
// matching. Internships are intentionally excluded from the daily digest.
var validEmploymentTypes = map[string]bool{
	model.EmploymentFullTime: true,
	model.EmploymentPartTime: true,
	model.EmploymentContract: true,
	model.EmploymentTemp:     true,
}

// Candidate is one (user, job) pair that survived the hard filters.
// DistanceKm is carried forward so the scorer does not recompute it.
type Candidate struct {
	Job        *model.Job
	Enrichment *model.JobEnrichment
	DistanceKm float64
}

// GenerateCandidates narrows the job snapshot to the candidate set for one
// user. Filters run in fixed order and short-circuit when the set empties:
//
//  1. employment-type validity
//  2. active + not expired as of batchDate
//  3. recent-employer exclusion (14-day window)
//  4. geo: within the profile radius, or remote-capable
//
// When more than limit candidates survive, the top limit by the enrichment's
// precomputed composite score are kept (ties by job ID) before the
// expensive per-pair scorer runs. An empty result is not an error.
func GenerateCandidates(
	user *model.User,
	profile *model.UserProfile,
	jobs []model.Job,
	enrichment map[string]*model.JobEnrichment,
	recentApps []model.RecentApplication,
	batchDate time.Time,
	limit int,
) []Candidate {
	if limit <= 0 {
		limit = DefaultCandidateCap
	}

	excluded := excludedEmployers(recentApps, batchDate)

	candidates := make([]Candidate, 0, 64)
	for i := range jobs {
		job := &jobs[i]

		if !validEmploymentTypes[job.EmploymentType] {
			continue
		}
		if !job.Active || job.ExpiresAt.Before(batchDate) {
			continue
		}
		if excluded[job.EmployerID] {
			continue
		}

		dist := HaversineKm(user.HomeLat, user.HomeLon, job.Lat, job.Lon)
		if !job.Remote && (profile == nil || profile.RadiusKm <= 0 || dist > profile.RadiusKm) {
			continue
		}

		candidates = append(candidates, Candidate{
			Job:        job,
			Enrichment: enrichment[job.ID],
			DistanceKm: dist,
		})
	}

	if len(candidates) > limit {
		sort.Slice(candidates, func(i, j int) bool {
			si, sj := preScore(candidates[i].Enrichment), preScore(candidates[j].Enrichment)
			if si != sj {
				return si > sj
			}
			return candidates[i].Job.ID < candidates[j].Job.ID
		})
		candidates = candidates[:limit]
	}

	return candidates
}

// excludedEmployers returns the employers the user applied to within the
// exclusion window ending at batchDate. An application on day D excludes
// the employer for batch dates in [D, D+14).
func excludedEmployers(apps []model.RecentApplication, batchDate time.Time) map[string]bool {
	if len(apps) == 0 {
		return nil
	}
	excluded := make(map[string]bool, len(apps))
	for _, app := range apps {
		appliedDay := app.LastAppliedAt.UTC().Truncate(24 * time.Hour)
		age := batchDate.Sub(appliedDay)
		if age >= 0 && age < exclusionWindow {
			excluded[app.EmployerID] = true
		}
	}
	return excluded
}

func preScore(enr *model.JobEnrichment) float64 {
	if enr == nil {
		return 0
	}
	return enr.CompositeScore
}
