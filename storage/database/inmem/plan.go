package inmemdb

import (
	"context"
	"sort"

	"github.com/studywala/backend/core/plan"
)

type planRepository struct {
	db *planTable
}

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db.plan}
}

func owns(p plan.StudyPlan, ident plan.Identity) bool {
	if ident.ID != "" {
		return p.UserID == ident.ID
	}
	return ident.Email != "" && p.UserEmail == ident.Email
}

func copySlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(src))
	copy(out, src)
	return out
}

// clonePlan deep-copies the embedded slices so callers never share backing
// arrays with the stored document; only UpdatePlan may change the store.
func clonePlan(p plan.StudyPlan) plan.StudyPlan {
	out := p
	out.Subjects = copySlice(p.Subjects)
	out.Sessions = copySlice(p.Sessions)
	out.Goals = copySlice(p.Goals)
	for i, g := range p.Goals {
		out.Goals[i].Subjects = copySlice(g.Subjects)
		out.Goals[i].Milestones = copySlice(g.Milestones)
	}
	out.Statistics.SubjectStats = copySlice(p.Statistics.SubjectStats)
	out.Preferences.PreferredStudyTimes = copySlice(p.Preferences.PreferredStudyTimes)
	return out
}

func (repo *planRepository) CreatePlan(_ context.Context, p plan.StudyPlan) (plan.StudyPlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := clonePlan(p)
	repo.db.table[p.ID] = &stored
	return p, nil
}

func (repo *planRepository) QueryPlans(_ context.Context, ident plan.Identity) ([]plan.StudyPlan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	plans := make([]plan.StudyPlan, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if p.IsActive && owns(*p, ident) {
			plans = append(plans, clonePlan(*p))
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

func (repo *planRepository) GetPlanByID(_ context.Context, id string, ident plan.Identity) (plan.StudyPlan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.table[id]; ok && owns(*p, ident) {
		return clonePlan(*p), nil
	}
	return plan.StudyPlan{}, plan.ErrNotFound
}

func (repo *planRepository) UpdatePlan(_ context.Context, p plan.StudyPlan) (plan.StudyPlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing, ok := repo.db.table[p.ID]
	if !ok {
		return plan.StudyPlan{}, plan.ErrNotFound
	}
	if existing.Version != p.Version {
		return plan.StudyPlan{}, plan.ErrConflict
	}
	stored := clonePlan(p)
	stored.Version++
	repo.db.table[p.ID] = &stored
	return clonePlan(stored), nil
}
