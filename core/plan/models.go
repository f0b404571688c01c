package plan

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/studywala/backend/core"
)

var (
	// errors
	ErrNotFound          = errors.New("study plan not found")
	ErrSessionNotFound   = errors.New("study session not found")
	ErrGoalNotFound      = errors.New("study goal not found")
	ErrConflict          = errors.New("study plan was modified concurrently")
	ErrInvalidTransition = errors.New("illegal session status transition")
)

// Priority levels shared by sessions, goals and subjects.
// Subjects only go up to PriorityHigh.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// SessionStatus is the lifecycle state of a study session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionMissed     SessionStatus = "missed"
	SessionCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionMissed || s == SessionCancelled
}

// CanTransitionTo encodes the session state machine:
// scheduled → in-progress → completed; scheduled → missed;
// scheduled|in-progress → cancelled. Terminal states are final.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case SessionScheduled:
		return next == SessionInProgress || next == SessionMissed || next == SessionCancelled
	case SessionInProgress:
		return next == SessionCompleted || next == SessionCancelled
	}
	return false
}

type SessionType string

const (
	SessionTypeStudy      SessionType = "study"
	SessionTypeReview     SessionType = "review"
	SessionTypePractice   SessionType = "practice"
	SessionTypeExam       SessionType = "exam"
	SessionTypeAssignment SessionType = "assignment"
	SessionTypeBreak      SessionType = "break"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type GoalCategory string

const (
	GoalCategoryExam          GoalCategory = "exam"
	GoalCategoryAssignment    GoalCategory = "assignment"
	GoalCategorySkill         GoalCategory = "skill"
	GoalCategoryCertification GoalCategory = "certification"
	GoalCategoryOther         GoalCategory = "other"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

// Identity addresses the owning user of a plan. The system historically
// accepted either an opaque user id or an email; both are carried and
// ID takes priority when present.
type Identity struct {
	ID    string
	Email string
}

func (ident Identity) IsZero() bool { return ident.ID == "" && ident.Email == "" }

type Subject struct {
	Name           string   `json:"name"`
	Color          string   `json:"color"`
	Priority       Priority `json:"priority"`
	AllocatedHours float64  `json:"allocated_hours"`
	CompletedHours float64  `json:"completed_hours"`
}

type PomodoroCount struct {
	Planned   int `json:"planned"`
	Completed int `json:"completed"`
}

type Session struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Subject              string        `json:"subject"`
	Description          string        `json:"description,omitempty"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              time.Time     `json:"end_time"`
	Duration             int           `json:"duration"` // minutes; stored redundantly, may drift from EndTime-StartTime
	Priority             Priority      `json:"priority"`
	Status               SessionStatus `json:"status"`
	Type                 SessionType   `json:"type"`
	ActualStartTime      null.Time     `json:"actual_start_time"`
	ActualEndTime        null.Time     `json:"actual_end_time"`
	ActualDuration       null.Int      `json:"actual_duration"` // minutes
	CompletionPercentage int           `json:"completion_percentage"`
	Difficulty           Difficulty    `json:"difficulty"`
	Pomodoro             PomodoroCount `json:"pomodoro_sessions"`
}

// effectiveDuration is the actual duration when recorded, the planned one otherwise.
func (s Session) effectiveDuration() int {
	if s.ActualDuration.Valid {
		return s.ActualDuration.Int
	}
	return s.Duration
}

// effectiveEnd is the actual end time when recorded, the planned one otherwise.
func (s Session) effectiveEnd() time.Time {
	if s.ActualEndTime.Valid {
		return s.ActualEndTime.Time
	}
	return s.EndTime
}

type Milestone struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	TargetDate  time.Time `json:"target_date"`
	Completed   bool      `json:"completed"`
	CompletedAt null.Time `json:"completed_at"`
}

type Goal struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	TargetDate     time.Time    `json:"target_date"`
	Category       GoalCategory `json:"category"`
	Priority       Priority     `json:"priority"`
	Status         GoalStatus   `json:"status"`
	Progress       int          `json:"progress"` // 0-100
	Milestones     []Milestone  `json:"milestones,omitempty"`
	Subjects       []string     `json:"subjects,omitempty"`
	EstimatedHours float64      `json:"estimated_hours"`
	ActualHours    float64      `json:"actual_hours"`
}

type TimeWindow struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "12:00"
}

type DaySchedule struct {
	Active bool    `json:"active"`
	Hours  float64 `json:"hours"`
}

type WeeklySchedule struct {
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
	Sunday    DaySchedule `json:"sunday"`
}

type NotificationFlags struct {
	SessionReminders bool `json:"session_reminders"`
	DailyGoals       bool `json:"daily_goals"`
	WeeklyReports    bool `json:"weekly_reports"`
}

type Preferences struct {
	StudyHoursPerDay    float64        `json:"study_hours_per_day"`
	PreferredStudyTimes []TimeWindow   `json:"preferred_study_times,omitempty"`
	BreakDuration       int            `json:"break_duration"`  // minutes
	PomodoroLength      int            `json:"pomodoro_length"` // minutes
	WeeklySchedule      WeeklySchedule `json:"weekly_schedule"`
	Notifications       NotificationFlags `json:"notifications"`
}

func DefaultPreferences() Preferences {
	weekday := DaySchedule{Active: true, Hours: 4}
	return Preferences{
		StudyHoursPerDay: 4,
		BreakDuration:    15,
		PomodoroLength:   25,
		WeeklySchedule: WeeklySchedule{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  DaySchedule{Active: true, Hours: 3},
			Sunday:    DaySchedule{Active: false, Hours: 2},
		},
		Notifications: NotificationFlags{
			SessionReminders: true,
			DailyGoals:       true,
			WeeklyReports:    true,
		},
	}
}

type SubjectStat struct {
	Subject           string  `json:"subject"`
	HoursStudied      float64 `json:"hours_studied"`
	SessionsCompleted int     `json:"sessions_completed"`
}

// Statistics is a derived view of Sessions. It is never edited by hand;
// UpdateStatistics and CalculateStreak are the only writers.
type Statistics struct {
	TotalPlannedHours      float64       `json:"total_planned_hours"`
	TotalCompletedHours    float64       `json:"total_completed_hours"`
	TotalSessions          int           `json:"total_sessions"`
	CompletedSessions      int           `json:"completed_sessions"`
	AverageSessionDuration float64       `json:"average_session_duration"` // minutes
	StreakDays             int           `json:"streak_days"`
	LongestStreak          int           `json:"longest_streak"` // monotonic watermark
	LastStudyDate          null.Time     `json:"last_study_date"`
	SubjectStats           []SubjectStat `json:"subject_stats"`
}

// StudyPlan is the aggregate root owning subjects, sessions and goals.
type StudyPlan struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	UserEmail        string      `json:"user_email"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
	Subjects         []Subject   `json:"subjects"`
	Sessions         []Session   `json:"sessions"`
	Goals            []Goal      `json:"goals"`
	Preferences      Preferences `json:"preferences"`
	Statistics       Statistics  `json:"statistics"`
	IsActive         bool        `json:"is_active"`
	IsTemplate       bool        `json:"is_template"`
	TemplateCategory string      `json:"template_category,omitempty"`
	Version          int         `json:"version"`
	CreatedAt        time.Time   `json:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at"` // UTC
}

func (p *StudyPlan) session(id string) *Session {
	for i := range p.Sessions {
		if p.Sessions[i].ID == id {
			return &p.Sessions[i]
		}
	}
	return nil
}

func (p *StudyPlan) goal(id string) *Goal {
	for i := range p.Goals {
		if p.Goals[i].ID == id {
			return &p.Goals[i]
		}
	}
	return nil
}

// NewPlan contains information needed to create a new StudyPlan.
type NewPlan struct {
	Title            string       `json:"title" validate:"required"`
	Description      string       `json:"description"`
	StartDate        time.Time    `json:"start_date" validate:"required"`
	EndDate          time.Time    `json:"end_date" validate:"required,gtfield=StartDate"`
	Subjects         []NewSubject `json:"subjects" validate:"omitempty,dive"`
	Preferences      *Preferences `json:"preferences"`
	IsTemplate       bool         `json:"is_template"`
	TemplateCategory string       `json:"template_category" validate:"omitempty,oneof=exam-prep skill-building certification academic custom"`
}

func (np *NewPlan) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type NewSubject struct {
	Name           string   `json:"name" validate:"required"`
	Color          string   `json:"color" validate:"omitempty,hexcolor_"`
	Priority       Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	AllocatedHours float64  `json:"allocated_hours" validate:"gte=0"`
}

// UpdatePlan defines what information may be provided to modify an existing StudyPlan.
// Zero-valued fields keep their current value.
type UpdatePlan struct {
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	Subjects         []NewSubject `json:"subjects" validate:"omitempty,dive"`
	Preferences      *Preferences `json:"preferences"`
	IsTemplate       *bool        `json:"is_template"`
	TemplateCategory string       `json:"template_category" validate:"omitempty,oneof=exam-prep skill-building certification academic custom"`
}

func (up *UpdatePlan) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	up.Description = core.CleanString(up.Description)
	return validate.Struct(up)
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	Title                string        `json:"title" validate:"required"`
	Subject              string        `json:"subject" validate:"required"`
	Description          string        `json:"description"`
	StartTime            time.Time     `json:"start_time" validate:"required"`
	EndTime              time.Time     `json:"end_time" validate:"required,gtfield=StartTime"`
	Duration             int           `json:"duration" validate:"gte=0"` // minutes; derived from times when 0
	Priority             Priority      `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status               SessionStatus `json:"status" validate:"omitempty,oneof=scheduled in-progress completed missed cancelled"`
	Type                 SessionType   `json:"type" validate:"omitempty,oneof=study review practice exam assignment break"`
	Difficulty           Difficulty    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	CompletionPercentage int           `json:"completion_percentage" validate:"gte=0,lte=100"`
	Pomodoro             PomodoroCount `json:"pomodoro_sessions"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Subject = core.CleanString(ns.Subject)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// UpdateSession is a shallow patch on an existing Session.
// Zero-valued fields keep their current value; status changes are checked
// against the session state machine.
type UpdateSession struct {
	Title                string        `json:"title"`
	Subject              string        `json:"subject"`
	Description          string        `json:"description"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              time.Time     `json:"end_time"`
	Duration             int           `json:"duration" validate:"gte=0"`
	Priority             Priority      `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status               SessionStatus `json:"status" validate:"omitempty,oneof=scheduled in-progress completed missed cancelled"`
	Type                 SessionType   `json:"type" validate:"omitempty,oneof=study review practice exam assignment break"`
	Difficulty           Difficulty    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	ActualStartTime      null.Time     `json:"actual_start_time"`
	ActualEndTime        null.Time     `json:"actual_end_time"`
	ActualDuration       null.Int      `json:"actual_duration"`
	CompletionPercentage *int          `json:"completion_percentage" validate:"omitempty,gte=0,lte=100"`
	Pomodoro             *PomodoroCount `json:"pomodoro_sessions"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Title = core.CleanString(us.Title)
	us.Subject = core.CleanString(us.Subject)
	us.Description = core.CleanString(us.Description)
	return validate.Struct(us)
}

// NewGoal contains information needed to create a new Goal.
type NewGoal struct {
	Title          string       `json:"title" validate:"required"`
	Description    string       `json:"description"`
	TargetDate     time.Time    `json:"target_date" validate:"required"`
	Category       GoalCategory `json:"category" validate:"omitempty,oneof=exam assignment skill certification other"`
	Priority       Priority     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Subjects       []string     `json:"subjects"`
	Milestones     []Milestone  `json:"milestones"`
	EstimatedHours float64      `json:"estimated_hours" validate:"gte=0"`
}

func (ng *NewGoal) Validate(validate *validator.Validate) error {
	ng.Title = core.CleanString(ng.Title)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

// UpdateGoal is a shallow patch on an existing Goal.
// Goal mutation never touches session-derived statistics.
type UpdateGoal struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	TargetDate     time.Time    `json:"target_date"`
	Category       GoalCategory `json:"category" validate:"omitempty,oneof=exam assignment skill certification other"`
	Priority       Priority     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status         GoalStatus   `json:"status" validate:"omitempty,oneof=active completed paused cancelled"`
	Progress       *int         `json:"progress" validate:"omitempty,gte=0,lte=100"`
	Subjects       []string     `json:"subjects"`
	Milestones     []Milestone  `json:"milestones"`
	EstimatedHours *float64     `json:"estimated_hours" validate:"omitempty,gte=0"`
	ActualHours    *float64     `json:"actual_hours" validate:"omitempty,gte=0"`
}

func (ug *UpdateGoal) Validate(validate *validator.Validate) error {
	ug.Title = core.CleanString(ug.Title)
	ug.Description = core.CleanString(ug.Description)
	return validate.Struct(ug)
}

// SessionFilter filters a plan's sessions. The date range is inclusive
// on StartTime and only applies when both bounds are set.
type SessionFilter struct {
	StartDate time.Time     `query:"start_date"`
	EndDate   time.Time     `query:"end_date"`
	Status    SessionStatus `query:"status"`
}

func (sf *SessionFilter) IsEmpty() bool {
	return sf.StartDate.IsZero() && sf.EndDate.IsZero() && sf.Status == ""
}
