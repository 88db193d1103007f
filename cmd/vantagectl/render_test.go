package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
)

func TestRenderMembers(t *testing.T) {
	var buf bytes.Buffer
	renderMembers(&buf, []services.MemberOut{
		{ID: "mem-001", Name: "Alex Rivera", DataSources: services.DataSources{LeaveStatus: models.LeaveOOO},
			ManuallyOverridden: true, TimeOff: &services.TimeOffOut{Start: "2026-03-10", End: "2026-03-12"},
			UpcomingTimeOff: &services.TimeOffOut{Start: "2026-03-20", End: "2026-03-21"}},
		{ID: "mem-007", Name: "Casey Kim", DataSources: services.DataSources{LeaveStatus: models.LeaveAvailable}},
	})
	out := buf.String()
	for _, want := range []string{"mem-001", "Alex Rivera", "2026-03-10 → 2026-03-12 (pending)", "2026-03-20 → 2026-03-21", "2 members"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSuggestions(t *testing.T) {
	task := &models.Task{ID: "task-001", Title: "Patch login bug", Priority: models.PriorityP0, Status: models.TaskAtRisk,
		Deadline: time.Now()}

	var buf bytes.Buffer
	renderSuggestions(&buf, task)
	if !strings.Contains(buf.String(), "no suggestions") {
		t.Errorf("expected empty notice, got %s", buf.String())
	}

	task.Suggestions = []models.Suggestion{
		{MemberID: "mem-007", SkillMatchPct: 90, WorkloadPct: 40, ContextReason: "Owns the auth service"},
	}
	buf.Reset()
	renderSuggestions(&buf, task)
	if out := buf.String(); !strings.Contains(out, "mem-007") || !strings.Contains(out, "Owns the auth service") {
		t.Errorf("suggestion row missing:\n%s", out)
	}
}

func TestRenderReconcile(t *testing.T) {
	var buf bytes.Buffer
	renderReconcile(&buf, &services.ReconcileResult{Today: "2026-03-10", Activated: []string{"mem-001"}, Ignored: []string{"mem-003"}})
	out := buf.String()
	if !strings.Contains(out, "activated mem-001; expired none") || !strings.Contains(out, "ignored malformed windows: mem-003") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, &models.SeedResult{Members: 3, Tasks: 2}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"members": 3`) {
		t.Errorf("unexpected JSON %s", buf.String())
	}
}
