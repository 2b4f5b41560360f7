package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHumanStepDuration(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	at := func(d time.Duration) *time.Time {
		ts := start.Add(d)
		return &ts
	}

	if got := HumanStepDuration(nil, nil); got != "" {
		t.Errorf("nil timestamps: got %q, want empty", got)
	}
	if got := HumanStepDuration(&start, nil); got != "" {
		t.Errorf("missing completion: got %q, want empty", got)
	}
	if got := HumanStepDuration(&start, at(300*time.Millisecond)); got != "moments" {
		t.Errorf("sub-second step: got %q, want moments", got)
	}
	if got := HumanStepDuration(&start, at(5*time.Second)); got != "5 seconds" {
		t.Errorf("5s step: got %q", got)
	}
	if got := HumanStepDuration(&start, at(2*time.Minute)); got != "2 minutes" {
		t.Errorf("2m step: got %q", got)
	}
}

func TestMetadataDecode(t *testing.T) {
	type doc struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}

	md := Metadata{
		"story": map[string]interface{}{"title": "Landing Page", "count": 5},
	}

	var got doc
	if err := md.Decode("story", &got); err != nil {
		t.Fatal("Decode failed:", err)
	}
	if diff := cmp.Diff(doc{Title: "Landing Page", Count: 5}, got); diff != "" {
		t.Errorf("Decoded document mismatch (-want +got):\n%s", diff)
	}

	if err := md.Decode("missing", &got); err == nil {
		t.Error("expected an error for a missing key")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for status, terminal := range map[PipelineStatus]bool{
		PipelineStatusActive:    false,
		PipelineStatusResuming:  false,
		PipelineStatusCompleted: true,
		PipelineStatusFailed:    true,
		PipelineStatusCancelled: true,
	} {
		if IsTerminalPipelineStatus(status) != terminal {
			t.Errorf("IsTerminalPipelineStatus(%s) should be %v", status, terminal)
		}
	}

	for status, terminal := range map[StepStatus]bool{
		StepStatusPending:         false,
		StepStatusInProgress:      false,
		StepStatusWaitingApproval: false,
		StepStatusCompleted:       true,
		StepStatusFailed:          true,
	} {
		if IsTerminalStepStatus(status) != terminal {
			t.Errorf("IsTerminalStepStatus(%s) should be %v", status, terminal)
		}
	}
}
