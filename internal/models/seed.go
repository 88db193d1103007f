package models

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

//go:embed seed_data/*.json
var seedFS embed.FS

type seedMember struct {
	Member
	Week WeekAvailability `json:"week"`
}

type seedSuggestion struct {
	MemberID      string  `json:"memberId"`
	SkillMatchPct float64 `json:"skillMatchPct"`
	WorkloadPct   float64 `json:"workloadPct"`
	ContextReason string  `json:"contextReason"`
}

type seedTask struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	ProjectName   string           `json:"projectName"`
	Priority      string           `json:"priority"`
	AssigneeID    *string          `json:"assigneeId"`
	Status        string           `json:"status"`
	DeadlineHours int              `json:"deadlineHours"`
	Suggestions   []seedSuggestion `json:"suggestions"`
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Members int  `json:"members"`
	Tasks   int  `json:"tasks"`
	Skipped bool `json:"skipped"`
}

// Seed loads the demo roster and tasks. It does nothing when members exist.
// Deadlines are relative to now so the demo always has something due soon.
func Seed(db *gorm.DB, now time.Time) (*SeedResult, error) {
	var count int64
	if err := db.Model(&Member{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &SeedResult{Skipped: true}, nil
	}

	var members []seedMember
	if err := readSeed("seed_data/members.json", &members); err != nil {
		return nil, err
	}
	var tasks []seedTask
	if err := readSeed("seed_data/tasks.json", &tasks); err != nil {
		return nil, err
	}

	lastSynced := now.Add(-3 * time.Hour)
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range members {
			m := members[i].Member
			m.Week = members[i].Week
			m.LastSynced = lastSynced
			if m.LeaveStatus == "" {
				m.LeaveStatus = LeaveAvailable
			}
			m.IsOOO = m.LeaveStatus == LeaveOOO
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("seed member %s: %w", m.ID, err)
			}
		}

		for _, t := range tasks {
			task := Task{
				ID:          t.ID,
				Title:       t.Title,
				ProjectName: t.ProjectName,
				Priority:    t.Priority,
				AssigneeID:  t.AssigneeID,
				Status:      t.Status,
				Deadline:    now.Add(time.Duration(t.DeadlineHours) * time.Hour),
			}
			for rank, s := range t.Suggestions {
				task.Suggestions = append(task.Suggestions, Suggestion{
					MemberID:      s.MemberID,
					SkillMatchPct: s.SkillMatchPct,
					WorkloadPct:   s.WorkloadPct,
					ContextReason: s.ContextReason,
					Rank:          rank,
				})
			}
			if err := tx.Create(&task).Error; err != nil {
				return fmt.Errorf("seed task %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SeedResult{Members: len(members), Tasks: len(tasks)}, nil
}

func readSeed(name string, v interface{}) error {
	data, err := seedFS.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
