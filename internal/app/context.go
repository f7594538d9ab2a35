package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stratline/internal/config"
	"stratline/internal/domain"
	"stratline/internal/repo"
)

// ResolveWorkspaceAndConfig picks the active workspace and ensures a matching
// row exists in the DB, creating one seeded from config if missing. It prefers
// the explicit override, then stratline.yml, then a single-workspace DB.
func ResolveWorkspaceAndConfig(ctx context.Context, workspace, workspaceOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return "", nil, err
	}
	workspaceID := workspaceOverride
	if workspaceID == "" && cfg != nil {
		workspaceID = cfg.Workspace.ID
	}
	if workspaceID == "" {
		if w, err := r.SingleWorkspace(ctx); err == nil {
			workspaceID = w.ID
		} else {
			return "", nil, fmt.Errorf("workspace not specified; run sl workspace init or use --workspace-id")
		}
	}
	if cfg == nil {
		cfg = config.Default(workspaceID)
	}
	cfg.Workspace.ID = workspaceID

	if _, err := r.GetWorkspace(ctx, workspaceID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createWorkspace(ctx, r, workspaceID, cfg, actorID); err != nil {
			return "", nil, err
		}
	}
	return workspaceID, cfg, nil
}

// createWorkspace inserts a minimal workspace footprint using the seed config.
func createWorkspace(ctx context.Context, r repo.Repo, workspaceID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(workspaceID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	name := seedCfg.Workspace.Name
	if name == "" {
		name = workspaceID
	}
	w := domain.Workspace{
		ID:             workspaceID,
		Name:           name,
		PlanningRhythm: seedCfg.Planning.Rhythm,
		CreatedAt:      now,
	}
	if w.PlanningRhythm == "" {
		w.PlanningRhythm = domain.RhythmQuarters
	}
	if seedCfg.Planning.CycleLengthWeeks > 0 {
		n := seedCfg.Planning.CycleLengthWeeks
		w.CycleLengthWeeks = &n
	}
	if actorID == "" {
		actorID = "local-user"
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.InsertWorkspace(ctx, tx, w); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{"name": w.Name, "planning_rhythm": w.PlanningRhythm})
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(ts,type,workspace_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now, "workspace.init", w.ID, "workspace", w.ID, actorID, string(payload)); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}
