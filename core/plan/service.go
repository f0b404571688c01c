package plan

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studywala/backend/core"
)

// nowFunc is time.Now except in tests.
var nowFunc = time.Now

const analyticsCachePrefix = "plan:analytics:"

type Repository interface {
	CreatePlan(ctx context.Context, p StudyPlan) (StudyPlan, error)
	QueryPlans(ctx context.Context, ident Identity) ([]StudyPlan, error)
	GetPlanByID(ctx context.Context, id string, ident Identity) (StudyPlan, error)
	// UpdatePlan persists p against its current Version and bumps it.
	// It returns ErrConflict when the stored version no longer matches.
	UpdatePlan(ctx context.Context, p StudyPlan) (StudyPlan, error)
}

type Service struct {
	repo  Repository
	cache core.Cache // nil disables analytics caching
}

func NewService(repo Repository, cache core.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Query returns the requesting user's active plans.
func (svc *Service) Query(ctx context.Context, ident Identity) ([]StudyPlan, error) {
	if ident.IsZero() {
		return nil, ErrNotFound
	}
	return svc.repo.QueryPlans(ctx, ident)
}

// GetByID returns one of the requesting user's plans. Plans owned by
// other users are indistinguishable from missing ones.
func (svc *Service) GetByID(ctx context.Context, id string, ident Identity) (StudyPlan, error) {
	if ident.IsZero() {
		return StudyPlan{}, ErrNotFound
	}
	return svc.repo.GetPlanByID(ctx, id, ident)
}

func (svc *Service) Create(ctx context.Context, ident Identity, np NewPlan) (StudyPlan, error) {
	if ident.IsZero() {
		return StudyPlan{}, core.NewValidationError(errors.New("a plan owner is required"))
	}

	now := nowFunc().UTC()
	p := StudyPlan{
		ID:               uuid.New().String(),
		UserID:           ident.ID,
		UserEmail:        ident.Email,
		Title:            np.Title,
		Description:      np.Description,
		StartDate:        np.StartDate,
		EndDate:          np.EndDate,
		Subjects:         make([]Subject, 0, len(np.Subjects)),
		Sessions:         []Session{},
		Goals:            []Goal{},
		Preferences:      DefaultPreferences(),
		IsActive:         true,
		IsTemplate:       np.IsTemplate,
		TemplateCategory: np.TemplateCategory,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, ns := range np.Subjects {
		p.Subjects = append(p.Subjects, newSubject(ns))
	}
	if np.Preferences != nil {
		p.Preferences = *np.Preferences
	}
	p.UpdateStatistics()

	created, err := svc.repo.CreatePlan(ctx, p)
	if err != nil {
		return StudyPlan{}, errors.Wrap(err, "creating plan")
	}
	return created, nil
}

func (svc *Service) Update(ctx context.Context, id string, ident Identity, up UpdatePlan) (StudyPlan, error) {
	p, err := svc.GetByID(ctx, id, ident)
	if err != nil {
		return StudyPlan{}, err
	}

	if up.Title != "" {
		p.Title = up.Title
	}
	if up.Description != "" {
		p.Description = up.Description
	}
	if !up.StartDate.IsZero() {
		p.StartDate = up.StartDate
	}
	if !up.EndDate.IsZero() {
		p.EndDate = up.EndDate
	}
	if up.Subjects != nil {
		p.Subjects = make([]Subject, 0, len(up.Subjects))
		for _, ns := range up.Subjects {
			p.Subjects = append(p.Subjects, newSubject(ns))
		}
	}
	if up.Preferences != nil {
		p.Preferences = *up.Preferences
	}
	if up.IsTemplate != nil {
		p.IsTemplate = *up.IsTemplate
	}
	if up.TemplateCategory != "" {
		p.TemplateCategory = up.TemplateCategory
	}

	return svc.save(ctx, p)
}

// SoftDelete deactivates a plan; it no longer shows up in queries but
// its document is kept.
func (svc *Service) SoftDelete(ctx context.Context, id string, ident Identity) error {
	p, err := svc.GetByID(ctx, id, ident)
	if err != nil {
		return err
	}
	p.IsActive = false
	_, err = svc.save(ctx, p)
	return err
}

func (svc *Service) AddSession(ctx context.Context, planID string, ident Identity, ns NewSession) (Session, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:                   uuid.New().String(),
		Title:                ns.Title,
		Subject:              ns.Subject,
		Description:          ns.Description,
		StartTime:            ns.StartTime,
		EndTime:              ns.EndTime,
		Duration:             ns.Duration,
		Priority:             ns.Priority,
		Status:               ns.Status,
		Type:                 ns.Type,
		Difficulty:           ns.Difficulty,
		CompletionPercentage: ns.CompletionPercentage,
		Pomodoro:             ns.Pomodoro,
	}
	if sess.Duration == 0 {
		sess.Duration = int(ns.EndTime.Sub(ns.StartTime).Minutes())
	}
	if sess.Priority == "" {
		sess.Priority = PriorityMedium
	}
	if sess.Status == "" {
		sess.Status = SessionScheduled
	}
	if sess.Type == "" {
		sess.Type = SessionTypeStudy
	}
	if sess.Difficulty == "" {
		sess.Difficulty = DifficultyMedium
	}

	p.Sessions = append(p.Sessions, sess)
	if _, err = svc.save(ctx, p); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (svc *Service) UpdateSession(ctx context.Context, planID, sessionID string, ident Identity, us UpdateSession) (Session, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return Session{}, err
	}

	sess := p.session(sessionID)
	if sess == nil {
		return Session{}, ErrSessionNotFound
	}

	if us.Status != "" && us.Status != sess.Status {
		if !sess.Status.CanTransitionTo(us.Status) {
			return Session{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", sess.Status, us.Status)
		}
		sess.Status = us.Status
	}
	if us.Title != "" {
		sess.Title = us.Title
	}
	if us.Subject != "" {
		sess.Subject = us.Subject
	}
	if us.Description != "" {
		sess.Description = us.Description
	}
	if !us.StartTime.IsZero() {
		sess.StartTime = us.StartTime
	}
	if !us.EndTime.IsZero() {
		sess.EndTime = us.EndTime
	}
	if us.Duration > 0 {
		sess.Duration = us.Duration
	}
	if us.Priority != "" {
		sess.Priority = us.Priority
	}
	if us.Type != "" {
		sess.Type = us.Type
	}
	if us.Difficulty != "" {
		sess.Difficulty = us.Difficulty
	}
	if us.ActualStartTime.Valid {
		sess.ActualStartTime = us.ActualStartTime
	}
	if us.ActualEndTime.Valid {
		sess.ActualEndTime = us.ActualEndTime
	}
	if us.ActualDuration.Valid {
		sess.ActualDuration = us.ActualDuration
	}
	if us.CompletionPercentage != nil {
		sess.CompletionPercentage = *us.CompletionPercentage
	}
	if us.Pomodoro != nil {
		sess.Pomodoro = *us.Pomodoro
	}

	updated := *sess
	if _, err = svc.save(ctx, p); err != nil {
		return Session{}, err
	}
	return updated, nil
}

func (svc *Service) RemoveSession(ctx context.Context, planID, sessionID string, ident Identity) error {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return err
	}

	idx := -1
	for i := range p.Sessions {
		if p.Sessions[i].ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSessionNotFound
	}
	p.Sessions = append(p.Sessions[:idx], p.Sessions[idx+1:]...)

	_, err = svc.save(ctx, p)
	return err
}

func (svc *Service) QuerySessions(ctx context.Context, planID string, ident Identity, filter SessionFilter) ([]Session, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return nil, err
	}
	return p.FilterSessions(filter), nil
}

func (svc *Service) AddGoal(ctx context.Context, planID string, ident Identity, ng NewGoal) (Goal, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return Goal{}, err
	}

	goal := Goal{
		ID:             uuid.New().String(),
		Title:          ng.Title,
		Description:    ng.Description,
		TargetDate:     ng.TargetDate,
		Category:       ng.Category,
		Priority:       ng.Priority,
		Status:         GoalActive,
		Subjects:       ng.Subjects,
		Milestones:     ng.Milestones,
		EstimatedHours: ng.EstimatedHours,
	}
	if goal.Category == "" {
		goal.Category = GoalCategoryOther
	}
	if goal.Priority == "" {
		goal.Priority = PriorityMedium
	}

	p.Goals = append(p.Goals, goal)
	if _, err = svc.saveWithoutRecompute(ctx, p); err != nil {
		return Goal{}, err
	}
	return goal, nil
}

func (svc *Service) UpdateGoal(ctx context.Context, planID, goalID string, ident Identity, ug UpdateGoal) (Goal, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return Goal{}, err
	}

	goal := p.goal(goalID)
	if goal == nil {
		return Goal{}, ErrGoalNotFound
	}

	if ug.Title != "" {
		goal.Title = ug.Title
	}
	if ug.Description != "" {
		goal.Description = ug.Description
	}
	if !ug.TargetDate.IsZero() {
		goal.TargetDate = ug.TargetDate
	}
	if ug.Category != "" {
		goal.Category = ug.Category
	}
	if ug.Priority != "" {
		goal.Priority = ug.Priority
	}
	if ug.Status != "" {
		goal.Status = ug.Status
	}
	if ug.Progress != nil {
		goal.Progress = *ug.Progress
		if goal.Progress >= 100 {
			goal.Status = GoalCompleted
		}
	}
	if ug.Subjects != nil {
		goal.Subjects = ug.Subjects
	}
	if ug.Milestones != nil {
		goal.Milestones = ug.Milestones
	}
	if ug.EstimatedHours != nil {
		goal.EstimatedHours = *ug.EstimatedHours
	}
	if ug.ActualHours != nil {
		goal.ActualHours = *ug.ActualHours
	}

	updated := *goal
	if _, err = svc.saveWithoutRecompute(ctx, p); err != nil {
		return Goal{}, err
	}
	return updated, nil
}

// Analytics assembles the dashboard view for a plan, recomputing and
// persisting its statistics on the way. Results are cached until the
// next mutation.
func (svc *Service) Analytics(ctx context.Context, planID string, ident Identity) (Analytics, error) {
	// the ownership check always runs first; the cache only short-circuits the recompute
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return Analytics{}, err
	}

	if svc.cache != nil {
		if raw, err := svc.cache.Get(ctx, analyticsCachePrefix+planID); err == nil {
			var cached Analytics
			if err = json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	now := nowFunc()
	p.UpdateStatistics()
	p.CalculateStreak(now)
	if p, err = svc.repo.UpdatePlan(ctx, p); err != nil {
		return Analytics{}, errors.Wrap(err, "persisting recomputed statistics")
	}

	analytics := buildAnalytics(p, now)

	if svc.cache != nil {
		if raw, err := json.Marshal(analytics); err == nil {
			_ = svc.cache.Set(ctx, analyticsCachePrefix+planID, raw, 0)
		}
	}
	return analytics, nil
}

// Recommendations computes advisory nudges from the plan's latest statistics.
func (svc *Service) Recommendations(ctx context.Context, planID string, ident Identity) ([]Recommendation, error) {
	p, err := svc.GetByID(ctx, planID, ident)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	p.UpdateStatistics()
	p.CalculateStreak(now)
	return Recommend(p, now), nil
}

// save recomputes derived statistics, bumps UpdatedAt and persists the
// plan, dropping any cached analytics for it.
func (svc *Service) save(ctx context.Context, p StudyPlan) (StudyPlan, error) {
	p.UpdateStatistics()
	p.CalculateStreak(nowFunc())
	return svc.saveWithoutRecompute(ctx, p)
}

// saveWithoutRecompute is the persistence path for mutations that cannot
// affect session-derived statistics (goal changes).
func (svc *Service) saveWithoutRecompute(ctx context.Context, p StudyPlan) (StudyPlan, error) {
	p.UpdatedAt = nowFunc().UTC()
	saved, err := svc.repo.UpdatePlan(ctx, p)
	if err != nil {
		return StudyPlan{}, err
	}
	svc.invalidate(ctx, p.ID)
	return saved, nil
}

func (svc *Service) invalidate(ctx context.Context, planID string) {
	if svc.cache != nil {
		_ = svc.cache.Delete(ctx, analyticsCachePrefix+planID)
	}
}

func newSubject(ns NewSubject) Subject {
	s := Subject{
		Name:           ns.Name,
		Color:          ns.Color,
		Priority:       ns.Priority,
		AllocatedHours: ns.AllocatedHours,
	}
	if s.Color == "" {
		s.Color = "#3498db"
	}
	if s.Priority == "" {
		s.Priority = PriorityMedium
	}
	return s
}

// Analytics is the dashboard payload for a single plan.
type Analytics struct {
	Overview         Overview      `json:"overview"`
	SubjectBreakdown []SubjectStat `json:"subject_breakdown"`
	RecentActivity   []Session     `json:"recent_activity"`
	UpcomingSessions []Session     `json:"upcoming_sessions"`
	Goals            []Goal        `json:"goals"`
}

type Overview struct {
	TotalPlannedHours    float64 `json:"total_planned_hours"`
	TotalCompletedHours  float64 `json:"total_completed_hours"`
	CompletionPercentage int     `json:"completion_percentage"`
	TotalSessions        int     `json:"total_sessions"`
	CompletedSessions    int     `json:"completed_sessions"`
	StreakDays           int     `json:"streak_days"`
	LongestStreak        int     `json:"longest_streak"`
}

func buildAnalytics(p StudyPlan, now time.Time) Analytics {
	recent := make([]Session, 0, len(p.Sessions))
	upcoming := make([]Session, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		switch {
		case s.Status == SessionCompleted:
			recent = append(recent, s)
		case s.Status == SessionScheduled && !s.StartTime.Before(now):
			upcoming = append(upcoming, s)
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].effectiveEnd().After(recent[j].effectiveEnd()) })
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartTime.Before(upcoming[j].StartTime) })
	if len(recent) > 10 {
		recent = recent[:10]
	}
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}

	goals := make([]Goal, 0, len(p.Goals))
	for _, g := range p.Goals {
		if g.Status == GoalActive {
			goals = append(goals, g)
		}
	}

	return Analytics{
		Overview: Overview{
			TotalPlannedHours:    p.Statistics.TotalPlannedHours,
			TotalCompletedHours:  p.Statistics.TotalCompletedHours,
			CompletionPercentage: p.CompletionPercentage(),
			TotalSessions:        p.Statistics.TotalSessions,
			CompletedSessions:    p.Statistics.CompletedSessions,
			StreakDays:           p.Statistics.StreakDays,
			LongestStreak:        p.Statistics.LongestStreak,
		},
		SubjectBreakdown: p.Statistics.SubjectStats,
		RecentActivity:   recent,
		UpcomingSessions: upcoming,
		Goals:            goals,
	}
}
