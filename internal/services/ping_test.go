package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/slack-go/slack"
)

type pingCapture struct {
	users  string
	text   string
	blocks string
}

func newPingServer(t *testing.T, got *pingCapture, postFails bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.open", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got.users = r.FormValue("users")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "channel": map[string]string{"id": "D42"}})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got.text = r.FormValue("text")
		got.blocks = r.FormValue("blocks")
		if postFails {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "channel_not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "channel": "D42", "ts": "1773309600.000100"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newPingFixture(t *testing.T, srv *httptest.Server) *PingService {
	t.Helper()
	db := newTestDB(t)
	createMembers(t, db,
		models.Member{ID: "mem-001", Name: "Jordan Lee"},
		models.Member{ID: "mem-002", Name: "Priya Shah", SlackUserID: "U_PRIYA"},
	)
	now := fixedClock("2026-03-10")()
	tasks := []models.Task{
		{ID: "t-soon", Title: "Fix checkout", ProjectName: "Payments", Priority: models.PriorityP0,
			Status: models.TaskUnassigned, Deadline: now.Add(24 * time.Hour)},
		{ID: "t-later", Title: "Write runbook", ProjectName: "Ops", Priority: models.PriorityP2,
			Status: models.TaskUnassigned, Deadline: now.Add(7 * 24 * time.Hour)},
	}
	if err := db.Create(&tasks).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Suggestion{TaskID: "t-later", MemberID: "mem-001", ContextReason: "wrote the last one"}).Error; err != nil {
		t.Fatal(err)
	}
	return NewPingService(db, &config.SlackConfig{BotToken: "xoxb-test", PingUserID: "U_LEAD"},
		fixedClock("2026-03-10"), slack.OptionAPIURL(srv.URL+"/"))
}

func TestPingSendUrgent(t *testing.T) {
	var got pingCapture
	svc := newPingFixture(t, newPingServer(t, &got, false))

	res, err := svc.Send(context.Background(), &PingRequest{MemberID: "mem-001", TaskID: "t-soon"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Urgent || res.Channel != "D42" || res.MessageTS != "1773309600.000100" || res.Recipient != "U_LEAD" {
		t.Errorf("unexpected result %+v", res)
	}
	if got.users != "U_LEAD" {
		t.Errorf("DM should go to the configured ping user, got %q", got.users)
	}
	if !strings.HasPrefix(got.text, "Hey Jordan!") || !strings.Contains(got.text, "Fix checkout") {
		t.Errorf("unexpected fallback text %q", got.text)
	}
	if !strings.Contains(got.blocks, "Urgent coverage check") || !strings.Contains(got.blocks, ":red_circle:") {
		t.Errorf("unexpected blocks %s", got.blocks)
	}
}

func TestPingUsesMemberSlackIDAndStoredReason(t *testing.T) {
	var got pingCapture
	svc := newPingFixture(t, newPingServer(t, &got, false))

	res, err := svc.Send(context.Background(), &PingRequest{MemberID: "mem-002", TaskID: "t-later"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Urgent || got.users != "U_PRIYA" {
		t.Errorf("unexpected result %+v to %q", res, got.users)
	}
	if strings.Contains(got.blocks, "Why you were suggested") {
		t.Error("no suggestion exists for this member, reason block should be omitted")
	}

	if _, err := svc.Send(context.Background(), &PingRequest{MemberID: "mem-001", TaskID: "t-later"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.blocks, "wrote the last one") {
		t.Errorf("stored suggestion reason should be included, got %s", got.blocks)
	}
}

func TestPingErrors(t *testing.T) {
	var got pingCapture
	svc := newPingFixture(t, newPingServer(t, &got, true))
	ctx := context.Background()

	if _, err := svc.Send(ctx, &PingRequest{MemberID: "mem-404", TaskID: "t-soon"}); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
	if _, err := svc.Send(ctx, &PingRequest{MemberID: "mem-001", TaskID: "t-404"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.Send(ctx, &PingRequest{MemberID: "mem-001", TaskID: "t-soon"}); !errors.Is(err, ErrPingFailed) {
		t.Errorf("expected ErrPingFailed, got %v", err)
	}

	off := NewPingService(newTestDB(t), &config.SlackConfig{}, nil)
	if _, err := off.Send(ctx, &PingRequest{MemberID: "mem-001", TaskID: "t-soon"}); !errors.Is(err, ErrPingNotConfigured) {
		t.Errorf("expected ErrPingNotConfigured, got %v", err)
	}
}
