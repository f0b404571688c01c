package plan

import (
	"fmt"
	"math"
	"time"
)

type RecommendationType string

const (
	RecommendationSchedule   RecommendationType = "schedule"
	RecommendationMotivation RecommendationType = "motivation"
	RecommendationBalance    RecommendationType = "balance"
	RecommendationDeadline   RecommendationType = "deadline"
)

// Recommendation is an advisory nudge derived from a plan's current state.
// Recommendations are computed on demand and never persisted.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Action      string             `json:"action"`
}

// Recommend inspects the plan's statistics, streak, subject balance and
// goal deadlines and emits at most one nudge per rule (one per goal for
// deadlines).
func Recommend(p StudyPlan, now time.Time) []Recommendation {
	recs := []Recommendation{}

	if p.Statistics.TotalSessions > 0 {
		rate := float64(p.Statistics.CompletedSessions) / float64(p.Statistics.TotalSessions)
		if rate < 0.7 {
			recs = append(recs, Recommendation{
				Type:        RecommendationSchedule,
				Priority:    PriorityHigh,
				Title:       "Improve session completion rate",
				Description: fmt.Sprintf("Your completion rate is %.0f%%. Consider scheduling shorter, more achievable sessions.", rate*100),
				Action:      "adjust_session_length",
			})
		}
	}

	if p.Statistics.StreakDays == 0 {
		recs = append(recs, Recommendation{
			Type:        RecommendationMotivation,
			Priority:    PriorityMedium,
			Title:       "Build a study streak",
			Description: "Start building a daily study habit to improve consistency. Schedule a short session for tomorrow.",
			Action:      "schedule_tomorrow",
		})
	}

	if rec, ok := subjectBalance(p); ok {
		recs = append(recs, rec)
	}

	for _, g := range p.Goals {
		if g.Status != GoalActive {
			continue
		}
		daysLeft := int(math.Ceil(g.TargetDate.Sub(now).Hours() / 24))
		if daysLeft <= 7 && g.Progress < 80 {
			recs = append(recs, Recommendation{
				Type:        RecommendationDeadline,
				Priority:    PriorityUrgent,
				Title:       fmt.Sprintf("Deadline approaching: %s", g.Title),
				Description: fmt.Sprintf("%d days left with %d%% progress. Increase study time for this goal.", daysLeft, g.Progress),
				Action:      "focus_goal",
			})
		}
	}

	return recs
}

// subjectBalance flags the first subject receiving less than 20% of the
// total studied hours, when the plan spreads over more than one subject.
func subjectBalance(p StudyPlan) (Recommendation, bool) {
	stats := p.Statistics.SubjectStats
	if len(stats) <= 1 {
		return Recommendation{}, false
	}

	var total float64
	for _, st := range stats {
		total += st.HoursStudied
	}
	if total == 0 {
		return Recommendation{}, false
	}

	for _, st := range stats {
		if st.HoursStudied/total < 0.2 {
			return Recommendation{
				Type:        RecommendationBalance,
				Priority:    PriorityMedium,
				Title:       fmt.Sprintf("Rebalance time towards %s", st.Subject),
				Description: fmt.Sprintf("%s has received less than 20%% of your study time. Schedule more sessions for it.", st.Subject),
				Action:      "rebalance_subjects",
			}, true
		}
	}
	return Recommendation{}, false
}
