package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/studywala/backend/core/plan"
)

// planRow mirrors the study_plan table. The full aggregate lives in the
// doc jsonb column; the other columns exist for lookups and the
// optimistic concurrency check.
type planRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	UserEmail string         `db:"user_email"`
	IsActive  bool           `db:"is_active"`
	Version   int            `db:"version"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Doc       types.JSONText `db:"doc"`
}

func (row planRow) plan() (plan.StudyPlan, error) {
	var p plan.StudyPlan
	if err := json.Unmarshal(row.Doc, &p); err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "decoding plan document")
	}
	return p, nil
}

func newPlanRow(p plan.StudyPlan) (planRow, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return planRow{}, errors.Wrap(err, "encoding plan document")
	}
	return planRow{
		ID:        p.ID,
		UserID:    p.UserID,
		UserEmail: p.UserEmail,
		IsActive:  p.IsActive,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Doc:       types.JSONText(doc),
	}, nil
}

type planRepository struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sql.DB) plan.Repository {
	return &planRepository{db: sqlx.NewDb(db, "postgres")}
}

// ownerClause matches a plan to its owner; the user id wins when both
// addressing modes are present.
func ownerClause(ident plan.Identity) (string, string) {
	if ident.ID != "" {
		return "user_id = $2", ident.ID
	}
	return "user_email = $2", ident.Email
}

func (repo *planRepository) CreatePlan(ctx context.Context, p plan.StudyPlan) (plan.StudyPlan, error) {
	row, err := newPlanRow(p)
	if err != nil {
		return plan.StudyPlan{}, err
	}

	const q = `
		INSERT INTO study_plan (id, user_id, user_email, is_active, version, created_at, updated_at, doc)
		VALUES (:id, :user_id, :user_email, :is_active, :version, :created_at, :updated_at, :doc)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "inserting plan")
	}
	return p, nil
}

func (repo *planRepository) QueryPlans(ctx context.Context, ident plan.Identity) ([]plan.StudyPlan, error) {
	clause, owner := ownerClause(ident)
	q := `SELECT * FROM study_plan WHERE is_active = $1 AND ` + clause + ` ORDER BY created_at DESC`

	var rows []planRow
	if err := repo.db.SelectContext(ctx, &rows, q, true, owner); err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}

	plans := make([]plan.StudyPlan, 0, len(rows))
	for _, row := range rows {
		p, err := row.plan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (repo *planRepository) GetPlanByID(ctx context.Context, id string, ident plan.Identity) (plan.StudyPlan, error) {
	clause, owner := ownerClause(ident)
	q := `SELECT * FROM study_plan WHERE id = $1 AND ` + clause

	var row planRow
	if err := repo.db.GetContext(ctx, &row, q, id, owner); err != nil {
		if err == sql.ErrNoRows {
			return plan.StudyPlan{}, plan.ErrNotFound
		}
		return plan.StudyPlan{}, errors.Wrap(err, "fetching plan")
	}
	return row.plan()
}

func (repo *planRepository) UpdatePlan(ctx context.Context, p plan.StudyPlan) (plan.StudyPlan, error) {
	prevVersion := p.Version
	p.Version++

	row, err := newPlanRow(p)
	if err != nil {
		return plan.StudyPlan{}, err
	}

	const q = `
		UPDATE study_plan
		SET user_id = $1, user_email = $2, is_active = $3, version = $4, updated_at = $5, doc = $6
		WHERE id = $7 AND version = $8`
	res, err := repo.db.ExecContext(ctx, q,
		row.UserID, row.UserEmail, row.IsActive, row.Version, row.UpdatedAt, row.Doc, row.ID, prevVersion)
	if err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "updating plan")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "updating plan")
	}
	if n == 0 {
		var exists bool
		if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM study_plan WHERE id = $1)`, p.ID); err != nil {
			return plan.StudyPlan{}, errors.Wrap(err, "updating plan")
		}
		if exists {
			return plan.StudyPlan{}, plan.ErrConflict
		}
		return plan.StudyPlan{}, plan.ErrNotFound
	}
	return p, nil
}
