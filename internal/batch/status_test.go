package batch_test

import (
	"testing"

	"jobmate/digest-service/internal/batch"
)

var allStatuses = []batch.RunStatus{
	batch.StatusPending,
	batch.StatusRunning,
	batch.StatusCompleted,
	batch.StatusCompletedWithErrors,
	batch.StatusFailed,
	batch.StatusCancelled,
}

// ── ParseRunStatus ─────────────────────────────────────────────────────────

func TestParseRunStatus_ValidValues(t *testing.T) {
	valid := []string{
		"PENDING", "RUNNING", "COMPLETED",
		"COMPLETED_WITH_ERRORS", "FAILED", "CANCELLED",
	}
	for _, s := range valid {
		got, err := batch.ParseRunStatus(s)
		if err != nil {
			t.Errorf("ParseRunStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseRunStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseRunStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "UNKNOWN", "running", " RUNNING"} {
		if _, err := batch.ParseRunStatus(s); err == nil {
			t.Errorf("ParseRunStatus(%q) expected error, got nil", s)
		}
	}
}

// ── Transitions ────────────────────────────────────────────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from, to batch.RunStatus
	}{
		{batch.StatusPending, batch.StatusRunning},
		{batch.StatusPending, batch.StatusFailed},
		{batch.StatusRunning, batch.StatusCompleted},
		{batch.StatusRunning, batch.StatusCompletedWithErrors},
		{batch.StatusRunning, batch.StatusFailed},
		{batch.StatusRunning, batch.StatusCancelled},
	}
	for _, tc := range cases {
		if !batch.IsTransitionAllowed(tc.from, tc.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) must be true", tc.from, tc.to)
		}
	}
}

func TestIsTransitionAllowed_PendingCannotSkipRunning(t *testing.T) {
	for _, to := range []batch.RunStatus{
		batch.StatusCompleted, batch.StatusCompletedWithErrors, batch.StatusCancelled,
	} {
		if batch.IsTransitionAllowed(batch.StatusPending, to) {
			t.Errorf("IsTransitionAllowed(PENDING → %s) must be false", to)
		}
	}
}

func TestIsTransitionAllowed_TerminalStatesHaveNoOutgoing(t *testing.T) {
	terminals := []batch.RunStatus{
		batch.StatusCompleted, batch.StatusCompletedWithErrors,
		batch.StatusFailed, batch.StatusCancelled,
	}
	for _, from := range terminals {
		for _, to := range allStatuses {
			if batch.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) must be false: %s is terminal", from, to, from)
			}
		}
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	want := map[batch.RunStatus]bool{
		batch.StatusPending:             false,
		batch.StatusRunning:             false,
		batch.StatusCompleted:           true,
		batch.StatusCompletedWithErrors: true,
		batch.StatusFailed:              true,
		batch.StatusCancelled:           true,
	}
	for s, terminal := range want {
		if batch.IsTerminal(s) != terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, !terminal, terminal)
		}
	}
}
