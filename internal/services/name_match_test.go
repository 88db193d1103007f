package services

import (
	"testing"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
)

func matchRoster() []models.Member {
	return []models.Member{
		{ID: "mem-001", Name: "Alex Rivera"},
		{ID: "mem-002", Name: "Priya Shah"},
		{ID: "mem-003", Name: "Jordan Lee"},
		{ID: "mem-010", Name: "Maya Patel"},
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alex Rivera", "alex rivera"},
		{"  @alex.rivera ", "alex rivera"},
		{"<@U01ALEX|alex>", "alex"},
		{"<@U02PRIYA|Priya Shah>", "priya shah"},
		{"<@U01ALEX|>", "u01alex"},
		{"<@U01ALEX>", "u01alex"},
		{"Priya  Shah!", "priya shah"},
		{"O'Neil", "o neil"},
		{"mem-002", "mem 002"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("maya patel", "maya patel"); s != 1 {
		t.Errorf("identical strings should score 1, got %v", s)
	}
	if s := Similarity("", ""); s != 0 {
		t.Errorf("empty strings should score 0, got %v", s)
	}
	// one substitution over ten runes
	if s := Similarity("maya patel", "maya petel"); s < 0.89 || s > 0.91 {
		t.Errorf("expected ~0.9, got %v", s)
	}
}

func TestNameMatcherBest(t *testing.T) {
	nm := NewNameMatcher(0.75)
	roster := matchRoster()

	tests := []struct {
		name   string
		query  string
		wantID string
		wantOK bool
	}{
		{"exact", "Maya Patel", "mem-010", true},
		{"typo", "Maya Patell", "mem-010", true},
		{"case and punctuation", "@priya.shah", "mem-002", true},
		{"by id", "mem-002", "mem-002", true},
		{"chat mention with display name", "<@U0MAYA|Maya Patel>", "mem-010", true},
		{"first name only is too far", "Priya", "", false},
		{"unknown person", "Chris Doe", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, ok := nm.Best(tt.query, roster)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && m.ID != tt.wantID {
				t.Errorf("matched %s, want %s", m.ID, tt.wantID)
			}
		})
	}
}

func TestNameMatcherTieGoesToLowerID(t *testing.T) {
	nm := NewNameMatcher(0.75)
	roster := []models.Member{
		{ID: "mem-020", Name: "Sam Lee"},
		{ID: "mem-004", Name: "Sam Lee"},
	}

	m, score, ok := nm.Best("Sam Lee", roster)
	if !ok || score != 1 {
		t.Fatalf("expected a perfect match, got ok=%v score=%v", ok, score)
	}
	if m.ID != "mem-004" {
		t.Errorf("expected tie broken to mem-004, got %s", m.ID)
	}
}

func TestNameMatcherThresholdIsConfigurable(t *testing.T) {
	roster := matchRoster()

	strict := NewNameMatcher(0.95)
	if _, _, ok := strict.Best("Maya Patell", roster); ok {
		t.Error("strict matcher should reject a one-letter typo")
	}

	if nm := NewNameMatcher(0); nm.Threshold != DefaultNameMatchThreshold {
		t.Errorf("invalid threshold should fall back to default, got %v", nm.Threshold)
	}
}

func TestNameMatchTrace(t *testing.T) {
	nm := NewNameMatcher(0.75)
	got := nm.Match("Jordan Lee", matchRoster())
	if !got.Matched || got.MemberID != "mem-003" || got.Score != 1 {
		t.Errorf("unexpected trace %+v", got)
	}
}
