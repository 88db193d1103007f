package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/slack-go/slack"
)

func newSlackTestServer(t *testing.T, historyCalls, userCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(historyCalls, 1)
		_ = r.ParseForm()
		if r.FormValue("channel") != "C123" {
			t.Errorf("unexpected channel %q", r.FormValue("channel"))
		}
		// Newest first, split over two pages.
		page := map[string]interface{}{
			"ok":       true,
			"has_more": true,
			"messages": []map[string]interface{}{
				{"type": "message", "user": "U2", "text": "out tomorrow, <@U1> has my reviews", "ts": "1773309600.000200"},
				{"type": "message", "bot_id": "B1", "subtype": "bot_message", "username": "deploybot", "text": "deployed", "ts": "1773306000.000100"},
			},
			"response_metadata": map[string]string{"next_cursor": "page2"},
		}
		if n > 1 {
			if r.FormValue("cursor") != "page2" {
				t.Errorf("expected cursor page2, got %q", r.FormValue("cursor"))
			}
			page = map[string]interface{}{
				"ok":       true,
				"has_more": false,
				"messages": []map[string]interface{}{
					{"type": "message", "user": "U1", "text": "morning", "ts": "1773302400.000000"},
				},
			}
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(userCalls, 1)
		_ = r.ParseForm()
		users := map[string]map[string]interface{}{
			"U1": {"id": "U1", "name": "alex", "real_name": "Alex Rivera", "profile": map[string]string{"display_name": "", "real_name": "Alex Rivera"}},
			"U2": {"id": "U2", "name": "priya", "profile": map[string]string{"display_name": "Priya"}},
		}
		user, ok := users[r.FormValue("user")]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "user_not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "user": user})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackSourceFetchMessages(t *testing.T) {
	var historyCalls, userCalls int32
	srv := newSlackTestServer(t, &historyCalls, &userCalls)
	now := time.Unix(1773320000, 0)

	src := NewSlackSource(&config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"},
		func() time.Time { return now }, slack.OptionAPIURL(srv.URL+"/"))

	msgs, err := src.FetchMessages(context.Background(), 24, 100)
	if err != nil {
		t.Fatal(err)
	}
	if historyCalls != 2 {
		t.Errorf("expected two history pages, got %d", historyCalls)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	if msgs[0].Text != "morning" || msgs[0].SenderName != "Alex Rivera" {
		t.Errorf("messages should be oldest first, got %+v", msgs[0])
	}
	if msgs[1].BotID != "B1" || msgs[1].SubType != "bot_message" || msgs[1].SenderName != "deploybot" {
		t.Errorf("bot metadata should pass through, got %+v", msgs[1])
	}
	if msgs[2].Text != "out tomorrow, @Alex Rivera has my reviews" || msgs[2].SenderName != "Priya" || msgs[2].SenderID != "U2" {
		t.Errorf("unexpected resolved message %+v", msgs[2])
	}
	if got := msgs[2].SentAt; got.Unix() != 1773309600 || got.Location() != time.UTC {
		t.Errorf("unexpected timestamp %v", got)
	}
	if userCalls != 2 {
		t.Errorf("user lookups should be cached, got %d calls", userCalls)
	}
}

func TestSlackSourceLimitAndErrors(t *testing.T) {
	var historyCalls, userCalls int32
	srv := newSlackTestServer(t, &historyCalls, &userCalls)
	src := NewSlackSource(&config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"}, nil, slack.OptionAPIURL(srv.URL+"/"))

	msgs, err := src.FetchMessages(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || historyCalls != 1 {
		t.Errorf("limit should stop paging, got %d messages over %d calls", len(msgs), historyCalls)
	}

	if name := src.userName(context.Background(), "U404"); name != "U404" {
		t.Errorf("unknown user should fall back to id, got %q", name)
	}

	broken := NewSlackSource(&config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"}, nil, slack.OptionAPIURL("http://127.0.0.1:1/"))
	if _, err := broken.FetchMessages(context.Background(), 1, 10); err == nil {
		t.Error("expected an error from an unreachable API")
	}

	if NewSlackSource(&config.SlackConfig{ChannelID: "C123"}, nil) != nil {
		t.Error("missing token should disable the source")
	}
}
