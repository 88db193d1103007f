package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var timeNow = time.Now

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func statusColor(status string) string {
	switch status {
	case models.LeaveOOO, models.TaskAtRisk:
		return text.FgRed.Sprint(status)
	case models.LeavePartial, models.TaskUnassigned:
		return text.FgYellow.Sprint(status)
	}
	return text.FgGreen.Sprint(status)
}

func renderMembers(w io.Writer, members []services.MemberOut) {
	tw := newTable(w, table.Row{"ID", "Name", "Status", "Calendar %", "Hours", "Confidence", "Override", "Time off"})
	for _, m := range members {
		override := ""
		if m.ManuallyOverridden {
			override = "yes"
		}
		var windows []string
		for _, w := range []*services.TimeOffOut{m.TimeOff, m.UpcomingTimeOff} {
			if w == nil {
				continue
			}
			s := w.Start + " → " + w.End
			if !w.Active {
				s += " (pending)"
			}
			windows = append(windows, s)
		}
		tw.AppendRow(table.Row{
			m.ID, m.Name, statusColor(m.DataSources.LeaveStatus),
			m.DataSources.CalendarPct, m.DataSources.TaskLoadHours, m.ConfidenceScore,
			override, strings.Join(windows, "\n"),
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d members", len(members))})
	tw.Render()
}

func renderTasks(w io.Writer, tasks []models.Task) {
	tw := newTable(w, table.Row{"ID", "Title", "Priority", "Status", "Deadline", "Assignee", "Top suggestion"})
	for _, t := range tasks {
		assignee := ""
		if t.AssigneeID != nil {
			assignee = *t.AssigneeID
		}
		top := ""
		if len(t.Suggestions) > 0 {
			s := t.Suggestions[0]
			top = fmt.Sprintf("%s (%.0f%% skill, %.0f%% load)", s.MemberID, s.SkillMatchPct, s.WorkloadPct)
		}
		tw.AppendRow(table.Row{
			t.ID, text.Trim(t.Title, 40), t.Priority, statusColor(t.Status),
			t.Deadline.Local().Format("Mon Jan 2 15:04"), assignee, top,
		})
	}
	tw.Render()
}

func renderSuggestions(w io.Writer, task *models.Task) {
	fmt.Fprintf(w, "%s  %s [%s, %s]\n", task.ID, task.Title, task.Priority, task.Status)
	if len(task.Suggestions) == 0 {
		fmt.Fprintln(w, "no suggestions (task is covered, or no candidate could be scored)")
		return
	}
	tw := newTable(w, table.Row{"#", "Member", "Skill %", "Workload %", "Reason"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 60}})
	for i, s := range task.Suggestions {
		tw.AppendRow(table.Row{i + 1, s.MemberID, s.SkillMatchPct, s.WorkloadPct, s.ContextReason})
	}
	tw.Render()
}

func renderSyncResult(w io.Writer, r *services.SyncResult) {
	fmt.Fprintf(w, "scanned %d, detected %d, applied %d (pending %d), skipped %d, failed %d\n",
		r.MessagesScanned, r.Detected, r.Applied, r.Pending, r.Skipped, r.Failed)
	if len(r.Changes) > 0 {
		tw := newTable(w, table.Row{"Person", "Member", "Action", "Window", "Reason"})
		for _, c := range r.Changes {
			tw.AppendRow(table.Row{c.Person, c.MemberID, c.Action, c.Start + " → " + c.End, c.Reason})
		}
		tw.Render()
	}
	if r.Reconcile != nil {
		renderReconcile(w, r.Reconcile)
	}
}

func renderTraces(w io.Writer, traces []services.MessageTrace) {
	tw := newTable(w, table.Row{"Sent", "Sender", "Message", "Person", "Match", "Decision", "Reason"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 50}})
	for _, tr := range traces {
		match := ""
		if tr.Match != nil && tr.Match.Matched {
			match = fmt.Sprintf("%s (%.2f)", tr.Match.MemberID, tr.Match.Score)
		}
		reason := tr.Reason
		if reason == "" {
			reason = tr.FilterReason
		}
		if tr.ClassifyError != "" {
			reason = "classify: " + tr.ClassifyError
		}
		tw.AppendRow(table.Row{
			tr.SentAt.Local().Format("Jan 2 15:04"), tr.Sender, strings.ReplaceAll(tr.Text, "\n", " "),
			tr.Person, match, tr.Decision, reason,
		})
	}
	tw.Render()
}

func renderReconcile(w io.Writer, r *services.ReconcileResult) {
	fmt.Fprintf(w, "reconciled for %s: activated %s; expired %s\n",
		r.Today, listOrNone(r.Activated), listOrNone(r.Expired))
	if len(r.Ignored) > 0 {
		fmt.Fprintf(w, "ignored malformed windows: %s\n", strings.Join(r.Ignored, ", "))
	}
}

func listOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
