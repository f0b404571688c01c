package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func completedSession(subject string, duration int, end time.Time) Session {
	return Session{
		ID:        subject + end.Format(time.RFC3339),
		Subject:   subject,
		StartTime: end.Add(-time.Duration(duration) * time.Minute),
		EndTime:   end,
		Duration:  duration,
		Status:    SessionCompleted,
	}
}

func scheduledSession(subject string, duration int, start time.Time) Session {
	return Session{
		ID:        subject + start.Format(time.RFC3339),
		Subject:   subject,
		StartTime: start,
		EndTime:   start.Add(time.Duration(duration) * time.Minute),
		Duration:  duration,
		Status:    SessionScheduled,
	}
}

func TestUpdateStatistics(t *testing.T) {
	now := time.Date(2023, 5, 10, 18, 0, 0, 0, time.UTC)

	t.Run("no sessions", func(t *testing.T) {
		p := StudyPlan{}
		p.UpdateStatistics()
		assert.Equal(t, 0, p.Statistics.TotalSessions)
		assert.Equal(t, float64(0), p.Statistics.TotalPlannedHours)
		assert.Equal(t, float64(0), p.Statistics.AverageSessionDuration)
		assert.False(t, p.Statistics.LastStudyDate.Valid)
		assert.Empty(t, p.Statistics.SubjectStats)
	})

	t.Run("mixed sessions", func(t *testing.T) {
		p := StudyPlan{Sessions: []Session{
			completedSession("Math", 60, now),
			completedSession("Math", 120, now.Add(-24*time.Hour)),
			completedSession("Physics", 30, now.Add(-48*time.Hour)),
			scheduledSession("Chemistry", 90, now.Add(24*time.Hour)),
		}}
		p.UpdateStatistics()

		assert.Equal(t, 4, p.Statistics.TotalSessions)
		assert.Equal(t, 3, p.Statistics.CompletedSessions)
		assert.Equal(t, 5.0, p.Statistics.TotalPlannedHours)   // 300min, all sessions
		assert.Equal(t, 3.5, p.Statistics.TotalCompletedHours) // 210min, completed only
		assert.Equal(t, 70.0, p.Statistics.AverageSessionDuration)
		assert.True(t, p.Statistics.LastStudyDate.Valid)
		assert.Equal(t, now, p.Statistics.LastStudyDate.Time)

		// grouping keeps first-seen order
		if assert.Len(t, p.Statistics.SubjectStats, 2) {
			assert.Equal(t, SubjectStat{Subject: "Math", HoursStudied: 3, SessionsCompleted: 2}, p.Statistics.SubjectStats[0])
			assert.Equal(t, SubjectStat{Subject: "Physics", HoursStudied: 0.5, SessionsCompleted: 1}, p.Statistics.SubjectStats[1])
		}
	})

	t.Run("actuals override planned for completed work", func(t *testing.T) {
		sess := completedSession("Math", 60, now)
		sess.ActualDuration = null.IntFrom(90)
		sess.ActualEndTime = null.TimeFrom(now.Add(time.Hour))
		p := StudyPlan{Sessions: []Session{sess}}
		p.UpdateStatistics()

		assert.Equal(t, 1.0, p.Statistics.TotalPlannedHours) // planned still uses Duration
		assert.Equal(t, 1.5, p.Statistics.TotalCompletedHours)
		assert.Equal(t, 90.0, p.Statistics.AverageSessionDuration)
		assert.Equal(t, now.Add(time.Hour), p.Statistics.LastStudyDate.Time)
	})

	t.Run("idempotent", func(t *testing.T) {
		p := StudyPlan{Sessions: []Session{
			completedSession("Math", 60, now),
			scheduledSession("Physics", 45, now.Add(time.Hour)),
		}}
		p.UpdateStatistics()
		first := p.Statistics
		p.UpdateStatistics()
		assert.Equal(t, first, p.Statistics)
	})

	t.Run("streak fields survive recompute", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{StreakDays: 4, LongestStreak: 9}}
		p.UpdateStatistics()
		assert.Equal(t, 4, p.Statistics.StreakDays)
		assert.Equal(t, 9, p.Statistics.LongestStreak)
	})
}

func TestCalculateStreak(t *testing.T) {
	now := time.Date(2023, 5, 10, 15, 30, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	tests := []struct {
		name    string
		endings []time.Time
		want    int
	}{
		{"no completed sessions", nil, 0},
		{"today only", []time.Time{day(0)}, 1},
		{"three consecutive days ending today", []time.Time{day(0), day(-1), day(-2)}, 3},
		{"streak alive ending yesterday", []time.Time{day(-1), day(-2)}, 2},
		{"broken by a gap", []time.Time{day(0), day(-2), day(-3)}, 1},
		{"last study two days ago", []time.Time{day(-2)}, 0},
		{"multiple sessions one day count once", []time.Time{day(0), day(0).Add(-2 * time.Hour)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := StudyPlan{}
			for _, end := range tt.endings {
				p.Sessions = append(p.Sessions, completedSession("Math", 60, end))
			}
			p.CalculateStreak(now)
			assert.Equal(t, tt.want, p.Statistics.StreakDays)
		})
	}

	t.Run("longest streak never shrinks", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{LongestStreak: 5}}
		p.Sessions = append(p.Sessions, completedSession("Math", 60, day(0)))
		p.CalculateStreak(now)
		assert.Equal(t, 1, p.Statistics.StreakDays)
		assert.Equal(t, 5, p.Statistics.LongestStreak)

		for i := 1; i <= 6; i++ {
			p.Sessions = append(p.Sessions, completedSession("Math", 60, day(-i)))
		}
		p.CalculateStreak(now)
		assert.Equal(t, 7, p.Statistics.StreakDays)
		assert.Equal(t, 7, p.Statistics.LongestStreak)
	})

	t.Run("actual end time drives the day", func(t *testing.T) {
		sess := completedSession("Math", 60, day(-3))
		sess.ActualEndTime = null.TimeFrom(day(0))
		p := StudyPlan{Sessions: []Session{sess}}
		p.CalculateStreak(now)
		assert.Equal(t, 1, p.Statistics.StreakDays)
	})
}

func TestCompletionPercentage(t *testing.T) {
	tests := []struct {
		name      string
		planned   float64
		completed float64
		want      int
	}{
		{"no planned hours", 0, 0, 0},
		{"six of ten", 10, 6, 60},
		{"rounds to nearest", 3, 1, 33},
		{"rounds up", 3, 2, 67},
		{"over-delivery exceeds 100", 2, 3, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := StudyPlan{Statistics: Statistics{TotalPlannedHours: tt.planned, TotalCompletedHours: tt.completed}}
			assert.Equal(t, tt.want, p.CompletionPercentage())
		})
	}
}

func TestFilterSessions(t *testing.T) {
	now := time.Date(2023, 5, 10, 9, 0, 0, 0, time.UTC)
	inRange := scheduledSession("Math", 60, now)
	before := scheduledSession("Math", 60, now.AddDate(0, 0, -5))
	after := scheduledSession("Math", 60, now.AddDate(0, 0, 5))
	done := completedSession("Physics", 30, now.Add(time.Hour))
	p := StudyPlan{Sessions: []Session{inRange, before, after, done}}

	t.Run("empty filter returns everything", func(t *testing.T) {
		assert.Len(t, p.FilterSessions(SessionFilter{}), 4)
	})

	t.Run("date range inclusive on start time", func(t *testing.T) {
		got := p.FilterSessions(SessionFilter{StartDate: now, EndDate: now.Add(2 * time.Hour)})
		if assert.Len(t, got, 2) {
			assert.Equal(t, inRange.ID, got[0].ID)
			assert.Equal(t, done.ID, got[1].ID)
		}
	})

	t.Run("single bound is ignored", func(t *testing.T) {
		assert.Len(t, p.FilterSessions(SessionFilter{StartDate: now}), 4)
	})

	t.Run("status match", func(t *testing.T) {
		got := p.FilterSessions(SessionFilter{Status: SessionCompleted})
		if assert.Len(t, got, 1) {
			assert.Equal(t, done.ID, got[0].ID)
		}
	})
}
