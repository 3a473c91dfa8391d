//go:build !integration

package model

import (
	"testing"
)

// --- AnalysisJob Tests ---

func TestAnalysisJobLifecycle(t *testing.T) {
	t.Run("new job starts queued at zero progress", func(t *testing.T) {
		job := NewAnalysisJob("job-1", "uploads/img1.png", "")
		if job.Status != JobStatusQueued {
			t.Errorf("expected status queued, got %s", job.Status)
		}
		if job.Progress != 0 {
			t.Errorf("expected progress 0, got %d", job.Progress)
		}
	})

	t.Run("progress never regresses", func(t *testing.T) {
		job := NewAnalysisJob("job-2", "k", "")
		job.Start()
		job.ReportProgress(40)
		job.ReportProgress(20)
		if job.Progress != 40 {
			t.Errorf("expected progress to stay at 40, got %d", job.Progress)
		}
	})

	t.Run("progress is capped at 99 before completion", func(t *testing.T) {
		job := NewAnalysisJob("job-3", "k", "")
		job.Start()
		job.ReportProgress(250)
		if job.Progress != 99 {
			t.Errorf("expected progress capped at 99, got %d", job.Progress)
		}
	})

	t.Run("complete sets terminal state and full progress", func(t *testing.T) {
		job := NewAnalysisJob("job-4", "k", "")
		job.Start()
		job.Complete(&JobResult{StudyID: 7, NumFindings: 2, ImageKey: "k"})
		if job.Status != JobStatusCompleted {
			t.Fatalf("expected completed, got %s", job.Status)
		}
		if job.Progress != 100 {
			t.Errorf("expected progress 100, got %d", job.Progress)
		}
		if job.Result == nil || job.Result.StudyID != 7 {
			t.Errorf("expected result with study id 7, got %+v", job.Result)
		}
	})

	t.Run("terminal state is immutable", func(t *testing.T) {
		job := NewAnalysisJob("job-5", "k", "")
		job.Start()
		job.Fail("boom")
		job.Start()
		job.ReportProgress(90)
		job.Complete(&JobResult{})
		if job.Status != JobStatusFailed {
			t.Errorf("expected status to stay failed, got %s", job.Status)
		}
		if job.Error != "boom" {
			t.Errorf("expected error to stay 'boom', got %q", job.Error)
		}
		if job.Result != nil {
			t.Errorf("expected result to stay nil after terminal state")
		}
	})
}

// --- Finding Tests ---

func TestFindingValidate(t *testing.T) {
	cases := []struct {
		name    string
		finding Finding
		wantErr bool
	}{
		{"valid", Finding{Label: "opacity", Confidence: 0.85}, false},
		{"empty label", Finding{Label: "", Confidence: 0.5}, true},
		{"confidence too high", Finding{Label: "x", Confidence: 1.2}, true},
		{"confidence negative", Finding{Label: "x", Confidence: -0.1}, true},
		{"boundary zero", Finding{Label: "x", Confidence: 0}, false},
		{"boundary one", Finding{Label: "x", Confidence: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.finding.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestFindingClampConfidence(t *testing.T) {
	f := Finding{Label: "x", Confidence: 1.7}
	f.ClampConfidence()
	if f.Confidence != 1 {
		t.Errorf("expected clamp to 1, got %f", f.Confidence)
	}
	f.Confidence = -3
	f.ClampConfidence()
	if f.Confidence != 0 {
		t.Errorf("expected clamp to 0, got %f", f.Confidence)
	}
}

// --- ProgressEvent Tests ---

func TestSnapshotEvent(t *testing.T) {
	job := NewAnalysisJob("job-6", "k", "")
	job.Start()
	job.ReportProgress(35)
	ev := SnapshotEvent(job, "classified")
	if ev.JobID != "job-6" || ev.Status != JobStatusRunning || ev.Progress != 35 || ev.Step != "classified" {
		t.Errorf("unexpected snapshot: %+v", ev)
	}
}

// --- KnowledgeDocument Tests ---

func TestDocumentPreview(t *testing.T) {
	d := KnowledgeDocument{Content: "abcdef"}
	if got := d.Preview(10); got != "abcdef" {
		t.Errorf("short content should be returned as-is, got %q", got)
	}
	if got := d.Preview(3); got != "abc..." {
		t.Errorf("expected truncated preview, got %q", got)
	}
}
