package plan

import (
	"math"
	"time"

	"github.com/volatiletech/null/v8"
)

const dayFormat = "2006-01-02"

// UpdateStatistics recomputes the derived Statistics block from Sessions.
// It is idempotent and replaces the block wholesale; StreakDays and
// LongestStreak are owned by CalculateStreak and carried over unchanged.
func (p *StudyPlan) UpdateStatistics() {
	completed := make([]Session, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		if s.Status == SessionCompleted {
			completed = append(completed, s)
		}
	}

	stats := Statistics{
		TotalSessions:     len(p.Sessions),
		CompletedSessions: len(completed),
		StreakDays:        p.Statistics.StreakDays,
		LongestStreak:     p.Statistics.LongestStreak,
		SubjectStats:      make([]SubjectStat, 0, len(completed)),
	}
	for _, s := range p.Sessions {
		stats.TotalPlannedHours += float64(s.Duration) / 60
	}

	var last time.Time
	index := make(map[string]int, len(completed)) // subject -> position, first-seen order
	for _, s := range completed {
		dur := float64(s.effectiveDuration())
		stats.TotalCompletedHours += dur / 60
		stats.AverageSessionDuration += dur

		if end := s.effectiveEnd(); end.After(last) {
			last = end
		}

		i, ok := index[s.Subject]
		if !ok {
			i = len(stats.SubjectStats)
			index[s.Subject] = i
			stats.SubjectStats = append(stats.SubjectStats, SubjectStat{Subject: s.Subject})
		}
		stats.SubjectStats[i].HoursStudied += dur / 60
		stats.SubjectStats[i].SessionsCompleted++
	}

	if n := len(completed); n > 0 {
		stats.AverageSessionDuration /= float64(n)
		stats.LastStudyDate = null.TimeFrom(last)
	}

	p.Statistics = stats
}

// CalculateStreak recomputes StreakDays as the number of consecutive
// calendar days with at least one completed session, counting back from
// today, or from yesterday when today has none. LongestStreak only ever
// grows.
func (p *StudyPlan) CalculateStreak(now time.Time) {
	days := make(map[string]struct{})
	for _, s := range p.Sessions {
		if s.Status != SessionCompleted {
			continue
		}
		days[s.effectiveEnd().In(now.Location()).Format(dayFormat)] = struct{}{}
	}

	streak := 0
	if len(days) > 0 {
		cur := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if _, ok := days[cur.Format(dayFormat)]; !ok {
			// today has no completed session yet; a streak ending yesterday still counts
			cur = cur.AddDate(0, 0, -1)
		}
		for {
			if _, ok := days[cur.Format(dayFormat)]; !ok {
				break
			}
			streak++
			cur = cur.AddDate(0, 0, -1)
		}
	}

	p.Statistics.StreakDays = streak
	if streak > p.Statistics.LongestStreak {
		p.Statistics.LongestStreak = streak
	}
}

// CompletionPercentage is completed vs planned hours, rounded to the
// nearest integer. A plan with no planned hours is 0% complete.
func (p *StudyPlan) CompletionPercentage() int {
	if p.Statistics.TotalPlannedHours == 0 {
		return 0
	}
	return int(math.Round(p.Statistics.TotalCompletedHours / p.Statistics.TotalPlannedHours * 100))
}

// FilterSessions returns the plan's sessions matching the filter.
func (p *StudyPlan) FilterSessions(filter SessionFilter) []Session {
	sessions := make([]Session, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() {
			if s.StartTime.Before(filter.StartDate) || s.StartTime.After(filter.EndDate) {
				continue
			}
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}
