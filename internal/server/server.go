package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stratline/internal/domain"
	"stratline/internal/engine"
	"stratline/internal/repo"
	"stratline/internal/scoring"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"start_date must be before end_date"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Stratline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Stratline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerWorkspaces(group, cfg.Engine)
	registerYears(group, cfg.Engine)
	registerCycles(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerPillars(group, cfg.Engine)
	registerNarratives(group, cfg.Engine)
	registerCommitments(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "transition"):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "must"),
		strings.Contains(lowered, "cannot be empty"),
		strings.Contains(lowered, "not in workspace"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	m := map[string]json.RawMessage{}
	_ = json.Unmarshal(bodyBytes(ctx), &m)
	return m
}

// actorFromRequest reads the X-Actor-Id header; "api" when absent.
func actorFromRequest(ctx context.Context) string {
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	if r != nil {
		if actor := strings.TrimSpace(r.Header.Get("X-Actor-Id")); actor != "" {
			return actor
		}
	}
	return "api"
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Stratline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerWorkspaces(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workspace",
		Method:        http.MethodPost,
		Path:          "/workspaces",
		Summary:       "Create workspace",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkspaceRequest `json:"body"`
	}) (*struct {
		Body WorkspaceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		w, err := e.InitWorkspace(ctx, input.Body.ID, stringOrEmpty(input.Body.Name),
			domain.PlanningRhythm(input.Body.PlanningRhythm), input.Body.CycleLengthWeeks, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkspaceResponse `json:"body"`
		}{Body: workspaceResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workspaces",
		Method:      http.MethodGet,
		Path:        "/workspaces",
		Summary:     "List workspaces",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []WorkspaceResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListWorkspaces(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := []WorkspaceResponse{}
		for _, w := range items {
			res = append(res, workspaceResponse(w))
		}
		return &struct {
			Body []WorkspaceResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Get workspace",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body WorkspaceResponse `json:"body"`
	}, error) {
		w, err := e.Repo.GetWorkspace(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkspaceResponse `json:"body"`
		}{Body: workspaceResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workspace",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Update workspace planning",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string                 `path:"workspace_id"`
		Body        UpdateWorkspaceRequest `json:"body"`
	}) (*struct {
		Body WorkspaceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		w, err := e.SetWorkspacePlanning(ctx, input.WorkspaceID,
			domain.PlanningRhythm(input.Body.PlanningRhythm), input.Body.CycleLengthWeeks, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkspaceResponse `json:"body"`
		}{Body: workspaceResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-workspace",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Delete workspace",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteWorkspace(ctx, input.WorkspaceID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerYears(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-year",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/years",
		Summary:       "Create year",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string            `path:"workspace_id"`
		Body        CreateYearRequest `json:"body"`
	}) (*struct {
		Body YearResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		y, err := e.CreateYear(ctx, input.WorkspaceID, input.Body.Year, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body YearResponse `json:"body"`
		}{Body: yearResponse(y)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-years",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/years",
		Summary:     "List years",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body []YearResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListYears(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []YearResponse{}
		for _, y := range items {
			res = append(res, yearResponse(y))
		}
		return &struct {
			Body []YearResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerCycles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-cycle",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/cycles",
		Summary:       "Create cycle",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string             `path:"workspace_id"`
		Body        CreateCycleRequest `json:"body"`
	}) (*struct {
		Body CycleResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.CycleCreateOptions{
			WorkspaceID: input.WorkspaceID,
			YearID:      input.Body.YearID,
			Name:        input.Body.Name,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Status:      domain.CycleStatus(input.Body.Status),
			ActorID:     actorFromRequest(ctx),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		c, err := e.CreateCycle(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CycleResponse `json:"body"`
		}{Body: cycleResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cycles",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/cycles",
		Summary:     "List cycles",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body []CycleResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListCycles(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []CycleResponse{}
		for _, c := range items {
			res = append(res, cycleResponse(c))
		}
		return &struct {
			Body []CycleResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cycle-defaults",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/cycles/defaults",
		Summary:     "Suggest next cycle",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body scoring.CycleDefaults `json:"body"`
	}, error) {
		d, err := e.CycleDefaults(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scoring.CycleDefaults `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cycle",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/cycles/{id}",
		Summary:     "Get cycle",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		ID          string `path:"id"`
	}) (*struct {
		Body CycleResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetCycle(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if c.WorkspaceID != input.WorkspaceID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "cycle not found in workspace", nil)
		}
		return &struct {
			Body CycleResponse `json:"body"`
		}{Body: cycleResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cycle-progress",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/cycles/{id}/progress",
		Summary:     "Cycle time progress",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		ID          string `path:"id"`
	}) (*struct {
		Body engine.CycleProgress `json:"body"`
	}, error) {
		p, err := e.Progress(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if p.Cycle.WorkspaceID != input.WorkspaceID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "cycle not found in workspace", nil)
		}
		return &struct {
			Body engine.CycleProgress `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-cycle-status",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_id}/cycles/{id}/status",
		Summary:     "Update cycle status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string                `path:"workspace_id"`
		ID          string                `path:"id"`
		Body        SetCycleStatusRequest `json:"body"`
	}) (*struct {
		Body CycleResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.SetCycleStatus(ctx, input.ID, domain.CycleStatus(input.Body.Status), actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if c.WorkspaceID != input.WorkspaceID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "cycle not found in workspace", nil)
		}
		return &struct {
			Body CycleResponse `json:"body"`
		}{Body: cycleResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-cycle",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_id}/cycles/{id}",
		Summary:     "Delete cycle",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		ID          string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteCycle(ctx, input.ID, actorFromRequest(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/teams",
		Summary:       "Create team",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string            `path:"workspace_id"`
		Body        CreateTeamRequest `json:"body"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.CreateTeam(ctx, input.WorkspaceID, input.Body.Name, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/teams",
		Summary:     "List teams",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body []TeamResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTeams(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []TeamResponse{}
		for _, t := range items {
			res = append(res, teamResponse(t))
		}
		return &struct {
			Body []TeamResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-team",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_id}/teams/{id}",
		Summary:     "Delete team",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		ID          string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTeam(ctx, input.ID, actorFromRequest(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPillars(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pillar",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/pillars",
		Summary:       "Create strategic pillar",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string              `path:"workspace_id"`
		Body        CreatePillarRequest `json:"body"`
	}) (*struct {
		Body PillarResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.CreatePillar(ctx, engine.PillarCreateOptions{
			WorkspaceID: input.WorkspaceID,
			YearID:      input.Body.YearID,
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			ActorID:     actorFromRequest(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PillarResponse `json:"body"`
		}{Body: pillarResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pillars",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/pillars",
		Summary:     "List strategic pillars",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		ActiveOnly  bool   `query:"active_only"`
	}) (*struct {
		Body []PillarResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListPillars(ctx, input.WorkspaceID, input.ActiveOnly)
		if err != nil {
			return nil, handleError(err)
		}
		res := []PillarResponse{}
		for _, p := range items {
			res = append(res, pillarResponse(p))
		}
		return &struct {
			Body []PillarResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-pillar-status",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_id}/pillars/{id}/status",
		Summary:     "Archive or reactivate pillar",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string                 `path:"workspace_id"`
		ID          string                 `path:"id"`
		Body        SetPillarStatusRequest `json:"body"`
	}) (*struct {
		Body PillarResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.SetPillarStatus(ctx, input.ID, domain.PillarStatus(input.Body.Status), actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if p.WorkspaceID != input.WorkspaceID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "pillar not found in workspace", nil)
		}
		return &struct {
			Body PillarResponse `json:"body"`
		}{Body: pillarResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-kpi",
		Method:        http.MethodPost,
		Path:          "/pillars/{pillar_id}/kpis",
		Summary:       "Create KPI",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PillarID string           `path:"pillar_id"`
		Body     CreateKPIRequest `json:"body"`
	}) (*struct {
		Body KPIResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		k, err := e.CreateKPI(ctx, input.PillarID, input.Body.Name, input.Body.Target, stringOrEmpty(input.Body.Unit), actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body KPIResponse `json:"body"`
		}{Body: kpiResponse(k)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-kpis",
		Method:      http.MethodGet,
		Path:        "/pillars/{pillar_id}/kpis",
		Summary:     "List KPIs",
	}, func(ctx context.Context, input *struct {
		PillarID string `path:"pillar_id"`
	}) (*struct {
		Body []KPIResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListKPIs(ctx, input.PillarID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []KPIResponse{}
		for _, k := range items {
			res = append(res, kpiResponse(k))
		}
		return &struct {
			Body []KPIResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerNarratives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-narrative",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/narratives",
		Summary:       "Create narrative",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string                 `path:"workspace_id"`
		Body        CreateNarrativeRequest `json:"body"`
	}) (*struct {
		Body NarrativeResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.NarrativeCreateOptions{
			WorkspaceID: input.WorkspaceID,
			TeamID:      stringOrEmpty(input.Body.TeamID),
			CycleID:     stringOrEmpty(input.Body.CycleID),
			PillarID:    stringOrEmpty(input.Body.PillarID),
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Status:      domain.NarrativeStatus(input.Body.Status),
			ActorID:     actorFromRequest(ctx),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		n, err := e.CreateNarrative(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NarrativeResponse `json:"body"`
		}{Body: narrativeResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-narratives",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/narratives",
		Summary:     "List narratives",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body []NarrativeResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListNarratives(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []NarrativeResponse{}
		for _, n := range items {
			res = append(res, narrativeResponse(n))
		}
		return &struct {
			Body []NarrativeResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-narrative",
		Method:      http.MethodGet,
		Path:        "/narratives/{id}",
		Summary:     "Get narrative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body NarrativeResponse `json:"body"`
	}, error) {
		n, err := e.Repo.GetNarrative(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NarrativeResponse `json:"body"`
		}{Body: narrativeResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-narrative",
		Method:      http.MethodPatch,
		Path:        "/narratives/{id}",
		Summary:     "Update narrative",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateNarrativeRequest `json:"body"`
	}) (*struct {
		Body NarrativeResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		bodyMap := rawBodyMap(ctx)
		opts := engine.NarrativeUpdateOptions{
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ActorID:     actorFromRequest(ctx),
		}
		if input.Body.Status != nil {
			opts.Status = domain.NarrativeStatus(*input.Body.Status)
		}
		// present-but-null clears a link; absent leaves it alone
		applyLinkField(bodyMap, "team_id", input.Body.TeamID, &opts.SetTeam)
		applyLinkField(bodyMap, "cycle_id", input.Body.CycleID, &opts.SetCycle)
		applyLinkField(bodyMap, "pillar_id", input.Body.PillarID, &opts.SetPillar)
		n, err := e.UpdateNarrative(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NarrativeResponse `json:"body"`
		}{Body: narrativeResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-narrative",
		Method:      http.MethodDelete,
		Path:        "/narratives/{id}",
		Summary:     "Delete narrative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteNarrative(ctx, input.ID, actorFromRequest(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func applyLinkField(bodyMap map[string]json.RawMessage, field string, value *string, dst **string) {
	raw, present := bodyMap[field]
	if !present {
		return
	}
	if string(raw) == "null" || value == nil {
		empty := ""
		*dst = &empty
		return
	}
	*dst = value
}

func registerCommitments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-commitment",
		Method:        http.MethodPost,
		Path:          "/narratives/{narrative_id}/commitments",
		Summary:       "Create commitment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NarrativeID string                  `path:"narrative_id"`
		Body        CreateCommitmentRequest `json:"body"`
	}) (*struct {
		Body CommitmentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.CommitmentCreateOptions{
			NarrativeID: input.NarrativeID,
			Title:       input.Body.Title,
			Status:      domain.CommitmentStatus(input.Body.Status),
			DueDate:     stringOrEmpty(input.Body.DueDate),
			ActorID:     actorFromRequest(ctx),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		c, err := e.CreateCommitment(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommitmentResponse `json:"body"`
		}{Body: commitmentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-commitments",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/commitments",
		Summary:     "List commitments",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body []CommitmentResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListCommitments(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []CommitmentResponse{}
		for _, c := range items {
			res = append(res, commitmentResponse(c))
		}
		return &struct {
			Body []CommitmentResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-commitment",
		Method:      http.MethodGet,
		Path:        "/commitments/{id}",
		Summary:     "Get commitment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body CommitmentResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetCommitment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommitmentResponse `json:"body"`
		}{Body: commitmentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-commitment",
		Method:      http.MethodPatch,
		Path:        "/commitments/{id}",
		Summary:     "Update commitment",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body UpdateCommitmentRequest `json:"body"`
	}) (*struct {
		Body CommitmentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		bodyMap := rawBodyMap(ctx)
		opts := engine.CommitmentUpdateOptions{
			ID:      input.ID,
			Title:   input.Body.Title,
			ActorID: actorFromRequest(ctx),
		}
		if input.Body.Status != nil {
			opts.Status = domain.CommitmentStatus(*input.Body.Status)
		}
		applyLinkField(bodyMap, "due_date", input.Body.DueDate, &opts.DueDate)
		c, err := e.UpdateCommitment(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommitmentResponse `json:"body"`
		}{Body: commitmentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-commitment",
		Method:      http.MethodDelete,
		Path:        "/commitments/{id}",
		Summary:     "Delete commitment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteCommitment(ctx, input.ID, actorFromRequest(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/commitments/{commitment_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CommitmentID string            `path:"commitment_id"`
		Body         CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.TaskCreateOptions{
			CommitmentID: input.CommitmentID,
			Title:        input.Body.Title,
			Status:       domain.TaskStatus(input.Body.Status),
			DueDate:      stringOrEmpty(input.Body.DueDate),
			ActorID:      actorFromRequest(ctx),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/commitments/{commitment_id}/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		CommitmentID string `path:"commitment_id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTasksByCommitment(ctx, input.CommitmentID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []TaskResponse{}
		for _, t := range items {
			res = append(res, taskResponse(t))
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		bodyMap := rawBodyMap(ctx)
		opts := engine.TaskUpdateOptions{
			ID:      input.ID,
			Title:   input.Body.Title,
			ActorID: actorFromRequest(ctx),
		}
		if input.Body.Status != nil {
			opts.Status = domain.TaskStatus(*input.Body.Status)
		}
		applyLinkField(bodyMap, "due_date", input.Body.DueDate, &opts.DueDate)
		t, err := e.UpdateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.ID, actorFromRequest(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "workspace-alignment",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/alignment",
		Summary:     "Alignment gaps and score",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body engine.AlignmentReport `json:"body"`
	}, error) {
		rep, err := e.Alignment(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AlignmentReport `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "workspace-health",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/health",
		Summary:     "Execution health score",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body scoring.Health `json:"body"`
	}, error) {
		h, err := e.Health(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scoring.Health `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "workspace-tree",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/tree",
		Summary:     "Nested strategy tree",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
	}) (*struct {
		Body scoring.Tree `json:"body"`
	}, error) {
		tree, err := e.Tree(ctx, input.WorkspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scoring.Tree `json:"body"`
		}{Body: tree}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/events",
		Summary:     "Recent events",
	}, func(ctx context.Context, input *struct {
		WorkspaceID string `path:"workspace_id"`
		Limit       int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Log(ctx, input.WorkspaceID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		res := []EventResponse{}
		for _, ev := range items {
			res = append(res, eventResponse(ev))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: res}, nil
	})
}
