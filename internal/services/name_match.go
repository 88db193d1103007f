package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/agnivade/levenshtein"
)

// DefaultNameMatchThreshold is the minimum similarity for a roster match.
const DefaultNameMatchThreshold = 0.75

// NameMatcher resolves a free-text person name to a roster member.
type NameMatcher struct {
	Threshold float64
}

func NewNameMatcher(threshold float64) *NameMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultNameMatchThreshold
	}
	return &NameMatcher{Threshold: threshold}
}

// NameMatch is the outcome of a lookup, kept for debug traces.
type NameMatch struct {
	Query    string  `json:"query"`
	MemberID string  `json:"memberId,omitempty"`
	Name     string  `json:"name,omitempty"`
	Score    float64 `json:"score"`
	Matched  bool    `json:"matched"`
}

// Best returns the roster member most similar to name, compared against both
// the member's name and id. Ties go to the lower id. ok is false when the best
// score is below the threshold.
func (nm *NameMatcher) Best(name string, roster []models.Member) (*models.Member, float64, bool) {
	query := NormalizeName(name)
	if query == "" {
		return nil, 0, false
	}

	var best *models.Member
	bestScore := -1.0
	for i := range roster {
		m := &roster[i]
		score := Similarity(query, NormalizeName(m.Name))
		if idScore := Similarity(query, NormalizeName(m.ID)); idScore > score {
			score = idScore
		}
		if score > bestScore || (score == bestScore && best != nil && m.ID < best.ID) {
			best, bestScore = m, score
		}
	}

	if best == nil || bestScore < nm.Threshold {
		return nil, bestScore, false
	}
	return best, bestScore, true
}

// Match is Best packaged for traces.
func (nm *NameMatcher) Match(name string, roster []models.Member) NameMatch {
	m, score, ok := nm.Best(name, roster)
	out := NameMatch{Query: name, Score: round2(score), Matched: ok}
	if score < 0 {
		out.Score = 0
	}
	if ok {
		out.MemberID = m.ID
		out.Name = m.Name
	}
	return out
}

// Similarity is 1 - editDistance/maxLen over runes, in [0,1].
// Two empty strings are not similar.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// NormalizeName lowercases and turns punctuation into spaces, collapsing runs.
// A chat user reference such as "<@U123|alice>" reduces to its display part,
// or to the id when no display part is given.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimPrefix(s, "@")
	if id, display, ok := strings.Cut(s, "|"); ok {
		s = id
		if strings.TrimSpace(display) != "" {
			s = display
		}
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
