package matching

import (
	"math"

	"jobmate/digest-service/internal/model"
)

// Composite weighting: 0.4 basic + 0.2 seo + 0.4 personalized.
const (
	basicWeight        = 0.4
	seoWeight          = 0.2
	personalizedWeight = 0.4

	// How much of the basic score the location-proximity adjustment can
	// take away at the edge of (or beyond) the user's radius.
	proximityPenalty = 0.3
)

// Match reasons recorded on a scored candidate.
const (
	ReasonNearHome      = "near_home"
	ReasonRemote        = "remote"
	ReasonCategoryMatch = "category_match"
	ReasonDegraded      = "degraded"
)

// PersonalizedStrategy computes the personalized sub-score for one pair.
// The second return value reports whether the strategy could produce a
// score; when false the caller falls back to the enrichment's precomputed
// base. The true collaborative-filtering model lives upstream, so the
// formula is deliberately pluggable.
type PersonalizedStrategy interface {
	Score(profile *model.UserProfile, job *model.Job, enr *model.JobEnrichment) (float64, bool)
}

// LatentFactorStrategy is the default personalized model: a blend of the
// user's category-interest weight for the job's category and the dot
// product of the user's latent-factor vector with the job embedding.
type LatentFactorStrategy struct{}

// Score returns 0.6 * (categoryWeight * 100) + 0.4 * clamp(dot, 0, 100).
// It reports false when the category weight is absent or the vectors are
// missing or length-mismatched.
func (LatentFactorStrategy) Score(profile *model.UserProfile, job *model.Job, enr *model.JobEnrichment) (float64, bool) {
	if profile == nil || enr == nil {
		return 0, false
	}
	weight, ok := profile.CategoryWeights[job.CategoryCode]
	if !ok {
		return 0, false
	}
	if len(profile.LatentFactors) == 0 || len(profile.LatentFactors) != len(enr.Embedding) {
		return 0, false
	}

	var dot float64
	for i, f := range profile.LatentFactors {
		dot += f * enr.Embedding[i]
	}

	return 0.6*(weight*100) + 0.4*clamp(dot), true
}

// Scorer computes the sub-scores and composite for candidate pairs.
// It is a pure function of its inputs: no randomness, no wall clock.
type Scorer struct {
	Personalized PersonalizedStrategy
}

// NewScorer returns a Scorer using the default latent-factor strategy.
func NewScorer() *Scorer {
	return &Scorer{Personalized: LatentFactorStrategy{}}
}

// ScoredCandidate is a Candidate with its computed scores attached.
type ScoredCandidate struct {
	Candidate
	Components     model.ScoreComponents
	CompositeScore float64
	MatchReasons   []string
}

// Score computes the three sub-scores and the composite for one candidate,
// each clamped to [0, 100]. Missing inputs never raise: the affected
// component substitutes 0 (or the enrichment base, for personalized) and a
// degraded reason is recorded.
func (s *Scorer) Score(user *model.User, profile *model.UserProfile, cand Candidate) ScoredCandidate {
	out := ScoredCandidate{Candidate: cand}
	enr := cand.Enrichment
	job := cand.Job

	degraded := false

	// Basic: enrichment score with a location-proximity adjustment.
	if enr != nil {
		basic := enr.BasicScore
		if radius := profileRadius(profile); radius > 0 {
			basic *= 1 - proximityPenalty*math.Min(1, cand.DistanceKm/radius)
		}
		out.Components.Basic = clamp(basic)
	} else {
		degraded = true
	}

	// SEO: passed through unmodified — keyword/volume weighting already
	// happened in the enrichment pipeline.
	if enr != nil {
		out.Components.SEO = clamp(enr.SEOScore)
	}

	// Personalized: strategy first, enrichment base as fallback.
	if score, ok := s.Personalized.Score(profile, job, enr); ok {
		out.Components.Personalized = clamp(score)
	} else if enr != nil {
		out.Components.Personalized = clamp(enr.PersonalizedBase)
	} else {
		degraded = true
	}

	out.CompositeScore = clamp(
		basicWeight*out.Components.Basic +
			seoWeight*out.Components.SEO +
			personalizedWeight*out.Components.Personalized)

	if profile != nil && profile.CategoryWeights[job.CategoryCode] > 0 {
		out.MatchReasons = append(out.MatchReasons, ReasonCategoryMatch)
	}
	if radius := profileRadius(profile); radius > 0 && cand.DistanceKm <= radius {
		out.MatchReasons = append(out.MatchReasons, ReasonNearHome)
	}
	if job.Remote {
		out.MatchReasons = append(out.MatchReasons, ReasonRemote)
	}
	if degraded {
		out.MatchReasons = append(out.MatchReasons, ReasonDegraded)
	}

	return out
}

func profileRadius(profile *model.UserProfile) float64 {
	if profile == nil {
		return 0
	}
	return profile.RadiusKm
}

// clamp bounds a score to [0, 100].
func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
