package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studywala/backend/core/plan"
)

func seedPlan(t *testing.T, repo plan.Repository) plan.StudyPlan {
	t.Helper()
	now := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	p, err := repo.CreatePlan(context.Background(), plan.StudyPlan{
		ID:       "p1",
		UserID:   "u1",
		Title:    "Finals prep",
		IsActive: true,
		Version:  1,
		Sessions: []plan.Session{
			{ID: "s1", Title: "Integrals", Subject: "Math", StartTime: now, EndTime: now.Add(time.Hour), Duration: 60, Status: plan.SessionScheduled},
		},
		Subjects:  []plan.Subject{{Name: "Math"}},
		Goals:     []plan.Goal{{ID: "g1", Title: "Pass", Status: plan.GoalActive}},
		CreatedAt: now,
	})
	require.NoError(t, err)
	return p
}

func TestPlanRepositoryReadsDoNotAliasStore(t *testing.T) {
	repo := NewPlanRepository(NewDB())
	ctx := context.Background()
	ident := plan.Identity{ID: "u1"}
	seedPlan(t, repo)

	got, err := repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)

	// scribbling on a fetched copy must not leak into the store
	got.Sessions[0].Title = "scribbled"
	got.Sessions[0].Status = plan.SessionCompleted
	got.Subjects[0].Name = "Scribbles"
	got.Goals[0].Status = plan.GoalCancelled

	fresh, err := repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)
	assert.Equal(t, "Integrals", fresh.Sessions[0].Title)
	assert.Equal(t, plan.SessionScheduled, fresh.Sessions[0].Status)
	assert.Equal(t, "Math", fresh.Subjects[0].Name)
	assert.Equal(t, plan.GoalActive, fresh.Goals[0].Status)

	listed, err := repo.QueryPlans(ctx, ident)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Sessions[0].Title = "scribbled again"

	fresh, err = repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)
	assert.Equal(t, "Integrals", fresh.Sessions[0].Title)
}

func TestPlanRepositoryVersionCAS(t *testing.T) {
	repo := NewPlanRepository(NewDB())
	ctx := context.Background()
	ident := plan.Identity{ID: "u1"}
	seedPlan(t, repo)

	first, err := repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)
	stale, err := repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)

	first.Title = "renamed"
	saved, err := repo.UpdatePlan(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.Version+1, saved.Version)

	stale.Title = "lost update"
	_, err = repo.UpdatePlan(ctx, stale)
	assert.Equal(t, plan.ErrConflict, err)

	// an aborted write leaves the stored plan untouched, mid-patch mutations included
	fresh, err := repo.GetPlanByID(ctx, "p1", ident)
	require.NoError(t, err)
	assert.Equal(t, "renamed", fresh.Title)
	assert.Equal(t, saved.Version, fresh.Version)
}
