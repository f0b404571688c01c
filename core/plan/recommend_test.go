package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recommendationTypes(recs []Recommendation) []RecommendationType {
	types := make([]RecommendationType, 0, len(recs))
	for _, r := range recs {
		types = append(types, r.Type)
	}
	return types
}

func findRecommendation(recs []Recommendation, typ RecommendationType) (Recommendation, bool) {
	for _, r := range recs {
		if r.Type == typ {
			return r, true
		}
	}
	return Recommendation{}, false
}

func TestRecommend(t *testing.T) {
	now := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("healthy plan gets nothing", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     10,
			CompletedSessions: 8,
			StreakDays:        3,
		}}
		assert.Empty(t, Recommend(p, now))
	})

	t.Run("low completion rate", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     10,
			CompletedSessions: 6,
			StreakDays:        3,
		}}
		recs := Recommend(p, now)
		if rec, ok := findRecommendation(recs, RecommendationSchedule); assert.True(t, ok) {
			assert.Equal(t, PriorityHigh, rec.Priority)
			assert.Contains(t, rec.Description, "60%")
		}
	})

	t.Run("empty plan skips the completion rule", func(t *testing.T) {
		p := StudyPlan{} // streak 0 still fires motivation
		assert.Equal(t, []RecommendationType{RecommendationMotivation}, recommendationTypes(Recommend(p, now)))
	})

	t.Run("broken streak", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     10,
			CompletedSessions: 9,
			StreakDays:        0,
		}}
		rec, ok := findRecommendation(Recommend(p, now), RecommendationMotivation)
		if assert.True(t, ok) {
			assert.Equal(t, PriorityMedium, rec.Priority)
			assert.Contains(t, rec.Description, "tomorrow", "the nudge asks for a session tomorrow, not today")
			assert.Equal(t, "schedule_tomorrow", rec.Action)
		}
	})

	t.Run("neglected subject", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     9,
			CompletedSessions: 9,
			StreakDays:        2,
			SubjectStats: []SubjectStat{
				{Subject: "Math", HoursStudied: 8},
				{Subject: "Physics", HoursStudied: 1},
			},
		}}
		rec, ok := findRecommendation(Recommend(p, now), RecommendationBalance)
		if assert.True(t, ok) {
			assert.Contains(t, rec.Title, "Physics")
		}
	})

	t.Run("single subject never flagged", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     5,
			CompletedSessions: 5,
			StreakDays:        2,
			SubjectStats:      []SubjectStat{{Subject: "Math", HoursStudied: 8}},
		}}
		assert.Empty(t, Recommend(p, now))
	})

	t.Run("only first neglected subject flagged", func(t *testing.T) {
		p := StudyPlan{Statistics: Statistics{
			TotalSessions:     5,
			CompletedSessions: 5,
			StreakDays:        2,
			SubjectStats: []SubjectStat{
				{Subject: "Math", HoursStudied: 20},
				{Subject: "Physics", HoursStudied: 1},
				{Subject: "Chemistry", HoursStudied: 1},
			},
		}}
		recs := Recommend(p, now)
		assert.Equal(t, []RecommendationType{RecommendationBalance}, recommendationTypes(recs))
		assert.Contains(t, recs[0].Title, "Physics")
	})

	t.Run("looming deadline", func(t *testing.T) {
		p := StudyPlan{
			Statistics: Statistics{TotalSessions: 5, CompletedSessions: 5, StreakDays: 1},
			Goals: []Goal{
				{ID: "a", Title: "Final exam", Status: GoalActive, Progress: 40, TargetDate: now.AddDate(0, 0, 3)},
				{ID: "b", Title: "Essay", Status: GoalActive, Progress: 90, TargetDate: now.AddDate(0, 0, 3)},
				{ID: "c", Title: "Far away", Status: GoalActive, Progress: 10, TargetDate: now.AddDate(0, 0, 30)},
				{ID: "d", Title: "Paused", Status: GoalPaused, Progress: 10, TargetDate: now.AddDate(0, 0, 3)},
			},
		}
		recs := Recommend(p, now)
		assert.Equal(t, []RecommendationType{RecommendationDeadline}, recommendationTypes(recs))
		assert.Equal(t, PriorityUrgent, recs[0].Priority)
		assert.Contains(t, recs[0].Title, "Final exam")
	})

	t.Run("one nudge per pressing goal", func(t *testing.T) {
		p := StudyPlan{
			Statistics: Statistics{TotalSessions: 5, CompletedSessions: 5, StreakDays: 1},
			Goals: []Goal{
				{ID: "a", Title: "Exam A", Status: GoalActive, Progress: 10, TargetDate: now.AddDate(0, 0, 2)},
				{ID: "b", Title: "Exam B", Status: GoalActive, Progress: 20, TargetDate: now.AddDate(0, 0, 5)},
			},
		}
		recs := Recommend(p, now)
		assert.Len(t, recs, 2)
	})

	t.Run("overdue goal still flagged", func(t *testing.T) {
		p := StudyPlan{
			Statistics: Statistics{TotalSessions: 5, CompletedSessions: 5, StreakDays: 1},
			Goals: []Goal{
				{ID: "a", Title: "Missed it", Status: GoalActive, Progress: 50, TargetDate: now.AddDate(0, 0, -2)},
			},
		}
		_, ok := findRecommendation(Recommend(p, now), RecommendationDeadline)
		assert.True(t, ok)
	})
}
