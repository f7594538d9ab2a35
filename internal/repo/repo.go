package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stratline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- workspaces ---

func (r Repo) InsertWorkspace(ctx context.Context, tx *sql.Tx, w domain.Workspace) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workspaces(id,name,planning_rhythm,cycle_length_weeks,created_at) VALUES (?,?,?,?,?)`,
		w.ID, w.Name, string(w.PlanningRhythm), w.CycleLengthWeeks, w.CreatedAt)
	return err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	var w domain.Workspace
	var weeks sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,planning_rhythm,cycle_length_weeks,created_at FROM workspaces WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &w.PlanningRhythm, &weeks, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if weeks.Valid {
		v := int(weeks.Int64)
		w.CycleLengthWeeks = &v
	}
	return w, err
}

// SingleWorkspace returns the only workspace, erroring when there are none or
// several; the CLI uses it to avoid requiring --workspace in the common case.
func (r Repo) SingleWorkspace(ctx context.Context) (domain.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM workspaces`)
	if err != nil {
		return domain.Workspace{}, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Workspace{}, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Workspace{}, err
	}
	if len(ids) == 0 {
		return domain.Workspace{}, ErrNotFound
	}
	if len(ids) > 1 {
		return domain.Workspace{}, fmt.Errorf("multiple workspaces exist; specify --workspace-id")
	}
	return r.GetWorkspace(ctx, ids[0])
}

func (r Repo) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,planning_rhythm,cycle_length_weeks,created_at FROM workspaces ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		var weeks sql.NullInt64
		if err := rows.Scan(&w.ID, &w.Name, &w.PlanningRhythm, &weeks, &w.CreatedAt); err != nil {
			return nil, err
		}
		if weeks.Valid {
			v := int(weeks.Int64)
			w.CycleLengthWeeks = &v
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) UpdateWorkspacePlanning(ctx context.Context, tx *sql.Tx, id string, rhythm domain.PlanningRhythm, cycleLengthWeeks *int) error {
	res, err := tx.ExecContext(ctx, `UPDATE workspaces SET planning_rhythm=?, cycle_length_weeks=? WHERE id=?`,
		string(rhythm), cycleLengthWeeks, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM workspaces WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- years ---

func (r Repo) InsertYear(ctx context.Context, tx *sql.Tx, y domain.Year) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO years(id,workspace_id,year,created_at) VALUES (?,?,?,?)`,
		y.ID, y.WorkspaceID, y.Year, y.CreatedAt)
	return err
}

func (r Repo) GetYear(ctx context.Context, id string) (domain.Year, error) {
	var y domain.Year
	err := r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,year,created_at FROM years WHERE id=?`, id).
		Scan(&y.ID, &y.WorkspaceID, &y.Year, &y.CreatedAt)
	if err == sql.ErrNoRows {
		return y, ErrNotFound
	}
	return y, err
}

// GetYearByNumber looks up a year row by its calendar year.
func (r Repo) GetYearByNumber(ctx context.Context, workspaceID string, year int) (domain.Year, error) {
	var y domain.Year
	err := r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,year,created_at FROM years WHERE workspace_id=? AND year=?`, workspaceID, year).
		Scan(&y.ID, &y.WorkspaceID, &y.Year, &y.CreatedAt)
	if err == sql.ErrNoRows {
		return y, ErrNotFound
	}
	return y, err
}

func (r Repo) ListYears(ctx context.Context, workspaceID string) ([]domain.Year, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workspace_id,year,created_at FROM years WHERE workspace_id=? ORDER BY year, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Year
	for rows.Next() {
		var y domain.Year
		if err := rows.Scan(&y.ID, &y.WorkspaceID, &y.Year, &y.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, y)
	}
	return res, rows.Err()
}

// --- cycles ---

func scanCycle(scan func(dest ...any) error) (domain.Cycle, error) {
	var c domain.Cycle
	err := scan(&c.ID, &c.WorkspaceID, &c.YearID, &c.Name, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

const cycleColumns = `id,workspace_id,year_id,name,start_date,end_date,status,created_at`

func (r Repo) InsertCycle(ctx context.Context, tx *sql.Tx, c domain.Cycle) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cycles(`+cycleColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.WorkspaceID, c.YearID, c.Name, c.StartDate, c.EndDate, string(c.Status), c.CreatedAt)
	return err
}

func (r Repo) GetCycle(ctx context.Context, id string) (domain.Cycle, error) {
	return scanCycle(r.DB.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id=?`, id).Scan)
}

func (r Repo) ListCycles(ctx context.Context, workspaceID string) ([]domain.Cycle, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE workspace_id=? ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Cycle
	for rows.Next() {
		c, err := scanCycle(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCycleStatus(ctx context.Context, tx *sql.Tx, id string, status domain.CycleStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE cycles SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCycle(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM cycles WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- teams ---

func (r Repo) InsertTeam(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO teams(id,workspace_id,name,created_at) VALUES (?,?,?,?)`,
		t.ID, t.WorkspaceID, t.Name, t.CreatedAt)
	return err
}

func (r Repo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var t domain.Team
	err := r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,name,created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTeams(ctx context.Context, workspaceID string) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workspace_id,name,created_at FROM teams WHERE workspace_id=? ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTeam(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM teams WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- events ---

func (r Repo) ListEvents(ctx context.Context, workspaceID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(workspace_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json
FROM events WHERE workspace_id=? ORDER BY id DESC LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.WorkspaceID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
