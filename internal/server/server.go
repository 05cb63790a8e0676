package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clipflow/internal/config"
	"clipflow/internal/dispatch"
	"clipflow/internal/domain"
	"clipflow/internal/events"
	"clipflow/internal/jobs"
	"clipflow/internal/repo"
	"clipflow/internal/scheduler"
)

// Config for the HTTP API handler.
type Config struct {
	Repo       repo.Repo
	Events     events.Writer
	Jobs       *jobs.Store
	Dispatcher *dispatch.Dispatcher
	Remote     scheduler.RemoteAPI
	Workspace  string
	Interval   time.Duration
	BasePath   string
	Auth       AuthConfig
	Logger     logrus.FieldLogger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"queue item not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Clipflow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Repo))
	hcfg := huma.DefaultConfig("Clipflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSchedule(group, cfg)
	registerRealign(group, cfg)
	registerQueue(group, cfg)
	registerApprovals(group, cfg)
	registerEvents(group, cfg)
	registerAPIKeys(group, cfg)
	registerDevAuth(group, cfg.Auth)
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
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
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
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Clipflow API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
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

func registerSchedule(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-schedule",
		Method:      http.MethodGet,
		Path:        "/schedule",
		Summary:     "Current schedule configuration",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *config.ScheduleConfig `json:"body"`
	}, error) {
		sc, err := config.Load(cfg.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *config.ScheduleConfig `json:"body"`
		}{Body: sc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reload-schedule",
		Method:      http.MethodPost,
		Path:        "/schedule/reload",
		Summary:     "Re-read the schedule configuration from disk",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *config.ScheduleConfig `json:"body"`
	}, error) {
		config.Invalidate()
		sc, err := config.Load(cfg.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		actorID, _ := actorIDFromContext(ctx)
		_ = cfg.Events.Append(ctx, "schedule.reloaded", "schedule", "", actorID, nil)
		return &struct {
			Body *config.ScheduleConfig `json:"body"`
		}{Body: sc}, nil
	})
}

func registerRealign(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-realign",
		Method:        http.MethodPost,
		Path:          "/realign",
		Summary:       "Start a schedule realignment job",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body RealignRequest `json:"body"`
	}) (*struct {
		Body RealignAcceptedResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc, err := config.Load(cfg.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		rules, err := config.LoadRules(config.RulesPath(cfg.Workspace))
		if err != nil {
			return nil, handleError(err)
		}
		req := input.Body
		var rnd *rand.Rand
		if req.Seed != nil {
			rnd = rand.New(rand.NewSource(*req.Seed))
		}

		kind := "realign"
		if req.DryRun {
			kind = "realign.dry_run"
		}
		jobID := jobs.Run(cfg.Jobs, kind, cfg.Logger, func(ctx context.Context, jobID string) error {
			r := &scheduler.Realigner{
				Remote:   cfg.Remote,
				Store:    cfg.Repo,
				Schedule: sc,
				Rules:    rules,
				Rand:     rnd,
				Interval: cfg.Interval,
				Logger:   cfg.Logger,
			}
			plan, err := r.BuildPlan(ctx, req.Prioritized)
			if err != nil {
				return err
			}
			cfg.Jobs.SetPlan(jobID, plan)
			_ = cfg.Events.Append(ctx, "realign.planned", "job", jobID, actorID, events.EventPayload{
				"posts":     len(plan.Posts),
				"to_cancel": len(plan.ToCancel),
				"skipped":   plan.Skipped,
				"dry_run":   req.DryRun,
			})
			if req.DryRun {
				cfg.Jobs.Complete(jobID, nil)
				return nil
			}
			cfg.Jobs.SetStatus(jobID, jobs.StatusExecuting)
			res := r.Execute(ctx, plan, func(completed, total int, phase string) {
				cfg.Jobs.SetProgress(jobID, completed, total, phase)
			})
			cfg.Jobs.Complete(jobID, &res)
			_ = cfg.Events.Append(ctx, "realign.completed", "job", jobID, actorID, events.EventPayload{
				"updated":   res.Updated,
				"cancelled": res.Cancelled,
				"failed":    res.Failed,
			})
			return nil
		})
		return &struct {
			Body RealignAcceptedResponse `json:"body"`
		}{Body: RealignAcceptedResponse{JobID: jobID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-realign-job",
		Method:      http.MethodGet,
		Path:        "/realign/jobs/{job_id}",
		Summary:     "Realignment job status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body jobs.Record `json:"body"`
	}, error) {
		rec, ok := cfg.Jobs.Get(input.JobID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "job not found", nil)
		}
		return &struct {
			Body jobs.Record `json:"body"`
		}{Body: rec}, nil
	})
}

func registerQueue(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-queue-item",
		Method:        http.MethodPost,
		Path:          "/queue",
		Summary:       "Create queue item",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateQueueItemRequest `json:"body"`
	}) (*struct {
		Body QueueItemResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Platform == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "platform is required", nil)
		}
		if input.Body.PostContent == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "post_content is required", nil)
		}
		if !domain.ValidClipType(input.Body.ClipType) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid clip_type", map[string]any{"clip_type": input.Body.ClipType})
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		now := time.Now().UTC().Format(time.RFC3339)
		it := domain.QueueItem{
			ID:          uuid.New().String(),
			Platform:    config.CanonicalPlatform(input.Body.Platform),
			ClipType:    domain.ClipType(input.Body.ClipType),
			PostContent: input.Body.PostContent,
			Status:      "pending",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			it.ID = *input.Body.ID
		}
		if input.Body.SourceMediaPath != nil {
			it.SourceMediaPath = *input.Body.SourceMediaPath
		}
		if input.Body.AccountID != nil {
			it.AccountID = *input.Body.AccountID
		}
		if err := cfg.Repo.InsertItem(ctx, it); err != nil {
			return nil, handleError(err)
		}
		_ = cfg.Events.Append(ctx, "item.created", "queue_item", it.ID, actorID, events.EventPayload{"platform": it.Platform})
		return &struct {
			Body QueueItemResponse `json:"body"`
		}{Body: itemResponse(it)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-queue-items",
		Method:      http.MethodGet,
		Path:        "/queue",
		Summary:     "List queue items",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:",pending,approved,rejected,published,failed"`
		Platform string `query:"platform"`
	}) (*struct {
		Body []QueueItemResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListItems(ctx, input.Status, config.CanonicalPlatform(input.Platform))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []QueueItemResponse `json:"body"`
		}{Body: mapItems(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-queue-item",
		Method:      http.MethodGet,
		Path:        "/queue/{id}",
		Summary:     "Get queue item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body QueueItemResponse `json:"body"`
	}, error) {
		it, err := cfg.Repo.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QueueItemResponse `json:"body"`
		}{Body: itemResponse(it)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-queue-item",
		Method:      http.MethodPost,
		Path:        "/queue/{id}/approve",
		Summary:     "Approve queue item",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body QueueItemResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := cfg.Repo.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if it.Status != "pending" && it.Status != "rejected" {
			return nil, newAPIError(http.StatusConflict, "conflict", fmt.Sprintf("item is %s, only pending or rejected items can be approved", it.Status), nil)
		}
		if err := cfg.Repo.SetItemStatus(ctx, input.ID, "approved", ""); err != nil {
			return nil, handleError(err)
		}
		_ = cfg.Events.Append(ctx, "item.approved", "queue_item", input.ID, actorID, nil)
		it, err = cfg.Repo.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QueueItemResponse `json:"body"`
		}{Body: itemResponse(it)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-queue-item",
		Method:      http.MethodPost,
		Path:        "/queue/{id}/reject",
		Summary:     "Reject queue item",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body RejectQueueItemRequest `json:"body"`
	}) (*struct {
		Body QueueItemResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := cfg.Repo.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if it.Status == "published" {
			return nil, newAPIError(http.StatusConflict, "conflict", "published items cannot be rejected", nil)
		}
		if err := cfg.Repo.SetItemStatus(ctx, input.ID, "rejected", input.Body.Reason); err != nil {
			return nil, handleError(err)
		}
		_ = cfg.Events.Append(ctx, "item.rejected", "queue_item", input.ID, actorID, events.EventPayload{"reason": input.Body.Reason})
		it, err = cfg.Repo.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QueueItemResponse `json:"body"`
		}{Body: itemResponse(it)}, nil
	})
}

func registerApprovals(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "dispatch-approvals",
		Method:      http.MethodPost,
		Path:        "/approvals",
		Summary:     "Publish approved queue items",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ApprovalsRequest `json:"body"`
	}) (*struct {
		Body dispatch.BatchResult `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		itemIDs := input.Body.ItemIDs
		if len(itemIDs) == 0 {
			// Empty means "everything approved", in queue order.
			approved, err := cfg.Repo.ListItems(ctx, "approved", "")
			if err != nil {
				return nil, handleError(err)
			}
			for _, it := range approved {
				itemIDs = append(itemIDs, it.ID)
			}
		} else {
			for _, id := range itemIDs {
				it, err := cfg.Repo.GetItem(ctx, id)
				if err != nil {
					return nil, handleError(err)
				}
				if it.Status != "approved" {
					return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("item %s is %s, not approved", id, it.Status), nil)
				}
			}
		}
		res, err := cfg.Dispatcher.Dispatch(ctx, itemIDs, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dispatch.BatchResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := cfg.Repo.EventsAfter(ctx, limit+1, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.ActorID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		plaintext := uuid.New().String() + uuid.New().String()
		key := domain.APIKey{
			ID:        uuid.New().String(),
			ActorID:   strings.TrimSpace(input.Body.ActorID),
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(plaintext),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = plaintext
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		keys, err := cfg.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Revoke API key",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := cfg.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
