package services

import (
	"context"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

type Summary struct {
	OOO                     int       `json:"ooo"`
	Partial                 int       `json:"partial"`
	FullyAvailable          int       `json:"fullyAvailable"`
	CriticalAtRisk          int       `json:"criticalAtRisk"`
	UnresolvedReassignments int       `json:"unresolvedReassignments"`
	LastSynced              time.Time `json:"lastSynced"`
}

type SummaryService struct {
	db           *gorm.DB
	availability *AvailabilityService
	clock        Clock
}

func NewSummaryService(db *gorm.DB, availability *AvailabilityService, clock Clock) *SummaryService {
	if clock == nil {
		clock = time.Now
	}
	return &SummaryService{db: db, availability: availability, clock: clock}
}

// Get counts members by effective status and tasks that still need cover.
func (s *SummaryService) Get(ctx context.Context) (*Summary, error) {
	if _, err := s.availability.Reconcile(ctx); err != nil {
		logger.Warnf("[Summary] Reconcile before summary failed: %v", err)
	}

	var members []models.Member
	if err := s.db.WithContext(ctx).Find(&members).Error; err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Select("id", "priority", "status").Find(&tasks).Error; err != nil {
		return nil, err
	}

	today := s.availability.Today()
	out := &Summary{}
	for i := range members {
		switch EffectiveStatus(&members[i], today) {
		case models.LeaveOOO:
			out.OOO++
		case models.LeavePartial:
			out.Partial++
		default:
			out.FullyAvailable++
		}
		if members[i].LastSynced.After(out.LastSynced) {
			out.LastSynced = members[i].LastSynced
		}
	}
	if out.LastSynced.IsZero() {
		out.LastSynced = s.clock().UTC()
	}

	for _, t := range tasks {
		if t.Status == models.TaskCovered {
			continue
		}
		out.UnresolvedReassignments++
		if models.IsCritical(t.Priority) {
			out.CriticalAtRisk++
		}
	}
	return out, nil
}
