package matching

import (
	"sort"
	"time"

	"jobmate/digest-service/internal/model"
)

// Digest section names mirror the email_section enum in PostgreSQL.
const (
	SectionTop5      = "top5"
	SectionRegional  = "regional"
	SectionNearby    = "nearby"
	SectionBenefits  = "benefits"
	SectionNew       = "new"
	SectionEditorial = "editorial_picks"
)

// sectionLayout fixes the digest order and per-section quotas.
// Totals 40 picks per user per day.
var sectionLayout = []struct {
	Name  string
	Quota int
}{
	{SectionTop5, 5},
	{SectionRegional, 10},
	{SectionNearby, 10},
	{SectionBenefits, 5},
	{SectionNew, 5},
	{SectionEditorial, 5},
}

// DefaultCompanyCap limits picks per employer per user per day.
const DefaultCompanyCap = 3

// SortCandidates orders scored candidates by composite score descending,
// ties broken by job ID ascending. This is a total order: required so a
// re-run of the same snapshot yields the identical ranking.
func SortCandidates(scored []ScoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].CompositeScore != scored[j].CompositeScore {
			return scored[i].CompositeScore > scored[j].CompositeScore
		}
		return scored[i].Job.ID < scored[j].Job.ID
	})
}

// BuildMappings converts the full sorted candidate list into persistable
// mapping rows. Every scored candidate gets a row, not just the selected
// picks — analytics consumes the complete ordering.
func BuildMappings(userID string, batchDate time.Time, sorted []ScoredCandidate) []model.Mapping {
	mappings := make([]model.Mapping, 0, len(sorted))
	for i, sc := range sorted {
		mappings = append(mappings, model.Mapping{
			UserID:         userID,
			JobID:          sc.Job.ID,
			BatchDate:      batchDate,
			CompositeScore: sc.CompositeScore,
			Components:     sc.Components,
			Rank:           i + 1,
		})
	}
	return mappings
}

// SelectPicks assigns sorted candidates to digest sections.
//
// The top5 headline section takes the five best candidates from distinct
// employers. The remaining sections fill in layout order from the rest of
// the sorted list, skipping any candidate whose employer already hit
// companyCap among the user's picks so far (all sections combined).
// A user with fewer candidates than the total quota simply gets fewer
// picks. sorted must already be in SortCandidates order.
func SelectPicks(userID string, batchDate time.Time, sorted []ScoredCandidate, companyCap int) []model.DailyPick {
	if companyCap <= 0 {
		companyCap = DefaultCompanyCap
	}

	picks := make([]model.DailyPick, 0, 40)
	companyCount := make(map[string]int)
	taken := make(map[int]bool, 8)

	// Headline section: best five, each from a different employer.
	top5Quota := sectionLayout[0].Quota
	rank := 0
	for i, sc := range sorted {
		if rank == top5Quota {
			break
		}
		emp := sc.Job.EmployerID
		if companyCount[emp] > 0 {
			continue
		}
		rank++
		companyCount[emp]++
		taken[i] = true
		picks = append(picks, model.DailyPick{
			UserID:       userID,
			JobID:        sc.Job.ID,
			BatchDate:    batchDate,
			Section:      SectionTop5,
			SectionRank:  rank,
			SectionOrder: 1,
		})
	}

	// Remaining sections, filled strictly in sort order.
	secIdx := 1
	rank = 0
	for i, sc := range sorted {
		if secIdx == len(sectionLayout) {
			break
		}
		if taken[i] {
			continue
		}
		emp := sc.Job.EmployerID
		if companyCount[emp] >= companyCap {
			continue
		}
		rank++
		companyCount[emp]++
		picks = append(picks, model.DailyPick{
			UserID:       userID,
			JobID:        sc.Job.ID,
			BatchDate:    batchDate,
			Section:      sectionLayout[secIdx].Name,
			SectionRank:  rank,
			SectionOrder: secIdx + 1,
		})
		if rank == sectionLayout[secIdx].Quota {
			secIdx++
			rank = 0
		}
	}

	return picks
}
