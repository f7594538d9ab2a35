package repo

import (
	"context"
	"database/sql"

	"stratline/internal/domain"
)

// --- pillars ---

const pillarColumns = `id,workspace_id,year_id,name,COALESCE(description,''),status,created_at`

func scanPillar(scan func(dest ...any) error) (domain.StrategicPillar, error) {
	var p domain.StrategicPillar
	err := scan(&p.ID, &p.WorkspaceID, &p.YearID, &p.Name, &p.Description, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertPillar(ctx context.Context, tx *sql.Tx, p domain.StrategicPillar) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO pillars(id,workspace_id,year_id,name,description,status,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.WorkspaceID, p.YearID, p.Name, nullable(p.Description), string(p.Status), p.CreatedAt)
	return err
}

func (r Repo) GetPillar(ctx context.Context, id string) (domain.StrategicPillar, error) {
	return scanPillar(r.DB.QueryRowContext(ctx, `SELECT `+pillarColumns+` FROM pillars WHERE id=?`, id).Scan)
}

// ListPillars returns pillars scoped to a workspace; pass activeOnly to
// restrict to status=active (the gap detector's input).
func (r Repo) ListPillars(ctx context.Context, workspaceID string, activeOnly bool) ([]domain.StrategicPillar, error) {
	query := `SELECT ` + pillarColumns + ` FROM pillars WHERE workspace_id=?`
	if activeOnly {
		query += ` AND status='active'`
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StrategicPillar
	for rows.Next() {
		p, err := scanPillar(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePillarStatus(ctx context.Context, tx *sql.Tx, id string, status domain.PillarStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE pillars SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- kpis ---

func (r Repo) InsertKPI(ctx context.Context, tx *sql.Tx, k domain.KPI) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO kpis(id,pillar_id,name,target,current,unit,created_at) VALUES (?,?,?,?,?,?,?)`,
		k.ID, k.PillarID, k.Name, k.Target, k.Current, nullable(k.Unit), k.CreatedAt)
	return err
}

func (r Repo) ListKPIs(ctx context.Context, pillarID string) ([]domain.KPI, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,pillar_id,name,target,current,COALESCE(unit,''),created_at FROM kpis WHERE pillar_id=? ORDER BY created_at, id`, pillarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KPI
	for rows.Next() {
		var k domain.KPI
		if err := rows.Scan(&k.ID, &k.PillarID, &k.Name, &k.Target, &k.Current, &k.Unit, &k.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) UpdateKPICurrent(ctx context.Context, id string, current float64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE kpis SET current=? WHERE id=?`, current, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- narratives ---

const narrativeColumns = `id,workspace_id,team_id,cycle_id,pillar_id,title,COALESCE(description,''),status,created_at,updated_at`

func scanNarrative(scan func(dest ...any) error) (domain.Narrative, error) {
	var n domain.Narrative
	var teamID, cycleID, pillarID sql.NullString
	err := scan(&n.ID, &n.WorkspaceID, &teamID, &cycleID, &pillarID, &n.Title, &n.Description, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if teamID.Valid {
		n.TeamID = &teamID.String
	}
	if cycleID.Valid {
		n.CycleID = &cycleID.String
	}
	if pillarID.Valid {
		n.PillarID = &pillarID.String
	}
	return n, err
}

func (r Repo) InsertNarrative(ctx context.Context, tx *sql.Tx, n domain.Narrative) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO narratives(id,workspace_id,team_id,cycle_id,pillar_id,title,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.WorkspaceID, n.TeamID, n.CycleID, n.PillarID, n.Title, nullable(n.Description), string(n.Status), n.CreatedAt, n.UpdatedAt)
	return err
}

func (r Repo) GetNarrative(ctx context.Context, id string) (domain.Narrative, error) {
	return scanNarrative(r.DB.QueryRowContext(ctx, `SELECT `+narrativeColumns+` FROM narratives WHERE id=?`, id).Scan)
}

func (r Repo) ListNarratives(ctx context.Context, workspaceID string) ([]domain.Narrative, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+narrativeColumns+` FROM narratives WHERE workspace_id=? ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Narrative
	for rows.Next() {
		n, err := scanNarrative(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) UpdateNarrative(ctx context.Context, tx *sql.Tx, n domain.Narrative) error {
	res, err := tx.ExecContext(ctx, `UPDATE narratives SET team_id=?, cycle_id=?, pillar_id=?, title=?, description=?, status=?, updated_at=? WHERE id=?`,
		n.TeamID, n.CycleID, n.PillarID, n.Title, nullable(n.Description), string(n.Status), n.UpdatedAt, n.ID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNarrative(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM narratives WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- commitments ---

const commitmentColumns = `id,narrative_id,workspace_id,team_id,title,status,due_date,created_at,updated_at`

func scanCommitment(scan func(dest ...any) error) (domain.Commitment, error) {
	var c domain.Commitment
	var teamID, dueDate sql.NullString
	err := scan(&c.ID, &c.NarrativeID, &c.WorkspaceID, &teamID, &c.Title, &c.Status, &dueDate, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if teamID.Valid {
		c.TeamID = &teamID.String
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.String
	}
	return c, err
}

func (r Repo) InsertCommitment(ctx context.Context, tx *sql.Tx, c domain.Commitment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO commitments(`+commitmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.NarrativeID, c.WorkspaceID, c.TeamID, c.Title, string(c.Status), c.DueDate, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCommitment(ctx context.Context, id string) (domain.Commitment, error) {
	return scanCommitment(r.DB.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id=?`, id).Scan)
}

func (r Repo) ListCommitments(ctx context.Context, workspaceID string) ([]domain.Commitment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE workspace_id=? ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCommitment(ctx context.Context, tx *sql.Tx, c domain.Commitment) error {
	res, err := tx.ExecContext(ctx, `UPDATE commitments SET team_id=?, title=?, status=?, due_date=?, updated_at=? WHERE id=?`,
		c.TeamID, c.Title, string(c.Status), c.DueDate, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCommitment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM commitments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- tasks ---

const taskColumns = `id,commitment_id,title,status,due_date,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var dueDate sql.NullString
	err := scan(&t.ID, &t.CommitmentID, &t.Title, &t.Status, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.CommitmentID, t.Title, string(t.Status), t.DueDate, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
}

// ListTasks returns every task under a workspace, joining through commitments
// since tasks only reference their commitment.
func (r Repo) ListTasks(ctx context.Context, workspaceID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.id,t.commitment_id,t.title,t.status,t.due_date,t.created_at,t.updated_at
FROM tasks t JOIN commitments c ON c.id=t.commitment_id WHERE c.workspace_id=? ORDER BY t.created_at, t.id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListTasksByCommitment(ctx context.Context, commitmentID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE commitment_id=? ORDER BY created_at, id`, commitmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, status=?, due_date=?, updated_at=? WHERE id=?`,
		t.Title, string(t.Status), t.DueDate, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
