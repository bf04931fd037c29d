package matching_test

import (
	"fmt"
	"testing"
	"time"

	"jobmate/digest-service/internal/matching"
	"jobmate/digest-service/internal/model"
)

var testBatchDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// Paris home, 10km radius.
func testUser() *model.User {
	return &model.User{ID: "u1", HomeLat: 48.8566, HomeLon: 2.3522, Subscribed: true, Active: true}
}

func testProfile(radiusKm float64) *model.UserProfile {
	return &model.UserProfile{UserID: "u1", RadiusKm: radiusKm}
}

func activeJob(id, employer string) model.Job {
	return model.Job{
		ID:             id,
		EmployerID:     employer,
		CategoryCode:   "100",
		Lat:            48.86, // ~0.5km from home
		Lon:            2.35,
		EmploymentType: model.EmploymentFullTime,
		Active:         true,
		ExpiresAt:      testBatchDate.AddDate(0, 1, 0),
	}
}

func generate(t *testing.T, jobs []model.Job, apps []model.RecentApplication) []matching.Candidate {
	t.Helper()
	return matching.GenerateCandidates(
		testUser(), testProfile(10), jobs, nil, apps, testBatchDate, 0,
	)
}

// ── Employment type ────────────────────────────────────────────────────────

func TestGenerateCandidates_InternshipsExcluded(t *testing.T) {
	intern := activeJob("j1", "e1")
	intern.EmploymentType = model.EmploymentInternship

	got := generate(t, []model.Job{intern, activeJob("j2", "e2")}, nil)
	if len(got) != 1 || got[0].Job.ID != "j2" {
		t.Fatalf("expected only j2 to survive, got %d candidate(s)", len(got))
	}
}

func TestGenerateCandidates_UnknownEmploymentTypeExcluded(t *testing.T) {
	odd := activeJob("j1", "e1")
	odd.EmploymentType = "FREELANCE_GIG"

	if got := generate(t, []model.Job{odd}, nil); len(got) != 0 {
		t.Fatalf("unknown employment type must be filtered, got %d", len(got))
	}
}

// ── Activity / expiry ──────────────────────────────────────────────────────

func TestGenerateCandidates_ExpiredAndInactiveExcluded(t *testing.T) {
	expired := activeJob("j1", "e1")
	expired.ExpiresAt = testBatchDate.AddDate(0, 0, -1)

	inactive := activeJob("j2", "e2")
	inactive.Active = false

	onEdge := activeJob("j3", "e3")
	onEdge.ExpiresAt = testBatchDate // expires today: still valid as of batchDate

	got := generate(t, []model.Job{expired, inactive, onEdge}, nil)
	if len(got) != 1 || got[0].Job.ID != "j3" {
		t.Fatalf("expected only j3, got %d candidate(s)", len(got))
	}
}

// ── Recent-employer exclusion ──────────────────────────────────────────────

// An application on day D excludes the employer for batch dates in [D, D+14).
func TestGenerateCandidates_RecentEmployerWindow(t *testing.T) {
	cases := []struct {
		daysAgo  int
		excluded bool
	}{
		{0, true},   // applied on the batch date itself
		{1, true},
		{13, true},  // last day inside the window
		{14, false}, // window closed
		{30, false},
	}
	for _, tc := range cases {
		apps := []model.RecentApplication{{
			UserID:        "u1",
			EmployerID:    "e1",
			LastAppliedAt: testBatchDate.AddDate(0, 0, -tc.daysAgo).Add(15 * time.Hour),
		}}
		got := generate(t, []model.Job{activeJob("j1", "e1")}, apps)
		if tc.excluded && len(got) != 0 {
			t.Errorf("application %d day(s) ago must exclude employer", tc.daysAgo)
		}
		if !tc.excluded && len(got) != 1 {
			t.Errorf("application %d day(s) ago must not exclude employer", tc.daysAgo)
		}
	}
}

func TestGenerateCandidates_ExclusionOnlyHitsThatEmployer(t *testing.T) {
	apps := []model.RecentApplication{{UserID: "u1", EmployerID: "e1", LastAppliedAt: testBatchDate}}
	got := generate(t, []model.Job{activeJob("j1", "e1"), activeJob("j2", "e2")}, apps)
	if len(got) != 1 || got[0].Job.ID != "j2" {
		t.Fatalf("only e1 jobs should be excluded, got %d candidate(s)", len(got))
	}
}

// ── Geo ────────────────────────────────────────────────────────────────────

func TestGenerateCandidates_OutsideRadiusExcludedUnlessRemote(t *testing.T) {
	far := activeJob("j1", "e1")
	far.Lat, far.Lon = 45.7640, 4.8357 // Lyon, ~390km from Paris

	farRemote := far
	farRemote.ID, farRemote.EmployerID = "j2", "e2"
	farRemote.Remote = true

	got := generate(t, []model.Job{far, farRemote}, nil)
	if len(got) != 1 || got[0].Job.ID != "j2" {
		t.Fatalf("expected only the remote job, got %d candidate(s)", len(got))
	}
}

func TestGenerateCandidates_DistanceCarriedForward(t *testing.T) {
	got := generate(t, []model.Job{activeJob("j1", "e1")}, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm > 10 {
		t.Errorf("DistanceKm = %f, want within (0, 10]", got[0].DistanceKm)
	}
}

// ── Cap / pre-selection ────────────────────────────────────────────────────

func TestGenerateCandidates_CapKeepsTopByEnrichmentScore(t *testing.T) {
	var jobs []model.Job
	enrichment := make(map[string]*model.JobEnrichment)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("j%02d", i)
		jobs = append(jobs, activeJob(id, fmt.Sprintf("e%d", i)))
		enrichment[id] = &model.JobEnrichment{JobID: id, CompositeScore: float64(i * 10)}
	}

	got := matching.GenerateCandidates(
		testUser(), testProfile(10), jobs, enrichment, nil, testBatchDate, 3,
	)
	if len(got) != 3 {
		t.Fatalf("cap 3, got %d candidates", len(got))
	}
	want := map[string]bool{"j09": true, "j08": true, "j07": true}
	for _, c := range got {
		if !want[c.Job.ID] {
			t.Errorf("candidate %s should not survive the cap", c.Job.ID)
		}
	}
}

func TestGenerateCandidates_CapTiesBrokenByJobID(t *testing.T) {
	// All enrichment scores equal — lowest job IDs must win deterministically.
	var jobs []model.Job
	enrichment := make(map[string]*model.JobEnrichment)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("j%d", i)
		jobs = append(jobs, activeJob(id, fmt.Sprintf("e%d", i)))
		enrichment[id] = &model.JobEnrichment{JobID: id, CompositeScore: 50}
	}

	got := matching.GenerateCandidates(
		testUser(), testProfile(10), jobs, enrichment, nil, testBatchDate, 2,
	)
	if len(got) != 2 || got[0].Job.ID != "j0" || got[1].Job.ID != "j1" {
		t.Fatalf("tie-break by job ID failed: got %+v", ids(got))
	}
}

func TestGenerateCandidates_EmptyResultIsNotAnError(t *testing.T) {
	if got := generate(t, nil, nil); len(got) != 0 {
		t.Fatalf("expected empty candidate set, got %d", len(got))
	}
}

func ids(cands []matching.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Job.ID)
	}
	return out
}

// ── Haversine ──────────────────────────────────────────────────────────────

func TestHaversineKm(t *testing.T) {
	if d := matching.HaversineKm(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}
	// Paris → Lyon is roughly 392km.
	d := matching.HaversineKm(48.8566, 2.3522, 45.7640, 4.8357)
	if d < 380 || d > 400 {
		t.Errorf("Paris-Lyon distance = %f, want ~392", d)
	}
}
