package matching_test

import (
	"math"
	"reflect"
	"testing"

	"jobmate/digest-service/internal/matching"
	"jobmate/digest-service/internal/model"
)

func scoringProfile() *model.UserProfile {
	return &model.UserProfile{
		UserID:          "u1",
		RadiusKm:        10,
		CategoryWeights: map[string]float64{"100": 0.9},
		LatentFactors:   []float64{1, 0, 1},
	}
}

func scoringCandidate(dist float64) matching.Candidate {
	return matching.Candidate{
		Job: &model.Job{ID: "j1", EmployerID: "e1", CategoryCode: "100"},
		Enrichment: &model.JobEnrichment{
			JobID:            "j1",
			BasicScore:       80,
			SEOScore:         60,
			PersonalizedBase: 40,
			Embedding:        []float64{50, 10, 30},
		},
		DistanceKm: dist,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ── Component formulas ─────────────────────────────────────────────────────

func TestScore_BasicProximityAdjustment(t *testing.T) {
	scorer := matching.NewScorer()
	user := testUser()
	profile := scoringProfile()

	// At 5km of a 10km radius: 80 * (1 - 0.3*0.5) = 68.
	got := scorer.Score(user, profile, scoringCandidate(5))
	if !approx(got.Components.Basic, 68) {
		t.Errorf("Basic at 5km = %f, want 68", got.Components.Basic)
	}

	// Beyond the radius the penalty caps at 0.3: 80 * 0.7 = 56.
	got = scorer.Score(user, profile, scoringCandidate(25))
	if !approx(got.Components.Basic, 56) {
		t.Errorf("Basic at 25km = %f, want 56", got.Components.Basic)
	}
}

func TestScore_SEOPassedThrough(t *testing.T) {
	got := matching.NewScorer().Score(testUser(), scoringProfile(), scoringCandidate(0))
	if got.Components.SEO != 60 {
		t.Errorf("SEO = %f, want 60 unmodified", got.Components.SEO)
	}
}

func TestScore_PersonalizedLatentFactor(t *testing.T) {
	// dot([1,0,1]·[50,10,30]) = 80; 0.6*(0.9*100) + 0.4*80 = 86.
	got := matching.NewScorer().Score(testUser(), scoringProfile(), scoringCandidate(0))
	if !approx(got.Components.Personalized, 86) {
		t.Errorf("Personalized = %f, want 86", got.Components.Personalized)
	}
}

func TestScore_PersonalizedFallsBackToBase(t *testing.T) {
	scorer := matching.NewScorer()
	user := testUser()

	// No category weight for this job's category.
	profile := scoringProfile()
	profile.CategoryWeights = map[string]float64{"999": 0.5}
	got := scorer.Score(user, profile, scoringCandidate(0))
	if got.Components.Personalized != 40 {
		t.Errorf("Personalized without category weight = %f, want base 40", got.Components.Personalized)
	}

	// Vector length mismatch.
	profile = scoringProfile()
	profile.LatentFactors = []float64{1, 2}
	got = scorer.Score(user, profile, scoringCandidate(0))
	if got.Components.Personalized != 40 {
		t.Errorf("Personalized with mismatched vectors = %f, want base 40", got.Components.Personalized)
	}
}

func TestScore_CompositeWeighting(t *testing.T) {
	// basic=80 (no proximity penalty at 0km), seo=60, personalized=86
	// → 0.4*80 + 0.2*60 + 0.4*86 = 78.4.
	got := matching.NewScorer().Score(testUser(), scoringProfile(), scoringCandidate(0))
	if !approx(got.CompositeScore, 78.4) {
		t.Errorf("CompositeScore = %f, want 78.4", got.CompositeScore)
	}
}

// ── Clamping ───────────────────────────────────────────────────────────────

func TestScore_ComponentsAndCompositeClamped(t *testing.T) {
	cand := scoringCandidate(0)
	cand.Enrichment.BasicScore = 500
	cand.Enrichment.SEOScore = -20
	cand.Enrichment.Embedding = []float64{1000, 1000, 1000}

	got := matching.NewScorer().Score(testUser(), scoringProfile(), cand)
	for name, v := range map[string]float64{
		"basic":        got.Components.Basic,
		"seo":          got.Components.SEO,
		"personalized": got.Components.Personalized,
		"composite":    got.CompositeScore,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s = %f, want within [0, 100]", name, v)
		}
	}
}

// ── Degradation ────────────────────────────────────────────────────────────

func TestScore_MissingEnrichmentDegradesToZero(t *testing.T) {
	cand := scoringCandidate(0)
	cand.Enrichment = nil

	got := matching.NewScorer().Score(testUser(), scoringProfile(), cand)
	if got.Components.Basic != 0 || got.Components.SEO != 0 || got.Components.Personalized != 0 {
		t.Errorf("missing enrichment must zero all components, got %+v", got.Components)
	}
	if !hasReason(got.MatchReasons, matching.ReasonDegraded) {
		t.Errorf("missing enrichment must record %q, got %v", matching.ReasonDegraded, got.MatchReasons)
	}
}

func TestScore_ReasonsRecorded(t *testing.T) {
	cand := scoringCandidate(5)
	cand.Job.Remote = true

	got := matching.NewScorer().Score(testUser(), scoringProfile(), cand)
	for _, want := range []string{matching.ReasonCategoryMatch, matching.ReasonNearHome, matching.ReasonRemote} {
		if !hasReason(got.MatchReasons, want) {
			t.Errorf("expected reason %q in %v", want, got.MatchReasons)
		}
	}
	if hasReason(got.MatchReasons, matching.ReasonDegraded) {
		t.Errorf("fully populated inputs must not be degraded: %v", got.MatchReasons)
	}
}

// ── Determinism ────────────────────────────────────────────────────────────

func TestScore_Deterministic(t *testing.T) {
	scorer := matching.NewScorer()
	user := testUser()
	profile := scoringProfile()

	first := scorer.Score(user, profile, scoringCandidate(3.7))
	for i := 0; i < 100; i++ {
		again := scorer.Score(user, profile, scoringCandidate(3.7))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("iteration %d differed:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func hasReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
