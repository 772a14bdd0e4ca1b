// Package server exposes the harvest control API: trigger runs, inspect
// run summaries and harvest objects.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/harvest"
	"github.com/opendatazurich/losd-harvester/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Runner   *harvest.Runner
	Store    store.Store
	BasePath string
	Auth     AuthConfig
}

// New returns an HTTP handler exposing the harvester API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("LOSD Harvester API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerRuns(group, cfg.Runner, cfg.Store)
	registerObjects(group, cfg.Store)

	return router, nil
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

func registerRuns(api huma.API, runner *harvest.Runner, st store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "run-create",
		Method:      http.MethodPost,
		Path:        "/runs",
		Summary:     "Trigger a harvest run",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Run `json:"body"`
	}, error) {
		run, err := runner.Run(ctx)
		if err != nil {
			// The summary row still reports partial progress.
			return &struct {
				Body domain.Run `json:"body"`
			}{Body: run}, huma.Error500InternalServerError("run aborted: " + err.Error())
		}
		return &struct {
			Body domain.Run `json:"body"`
		}{Body: run}, nil
	})

	type runsListInput struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"200"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "runs-list",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List harvest runs",
	}, func(ctx context.Context, input *runsListInput) (*struct {
		Body struct {
			Items []domain.Run `json:"items"`
		} `json:"body"`
	}, error) {
		runs, err := st.ListRuns(ctx, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		out := &struct {
			Body struct {
				Items []domain.Run `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Items = runs
		return out, nil
	})

	type runPath struct {
		RunID string `path:"run_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "run-get",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}",
		Summary:     "Get one harvest run",
	}, func(ctx context.Context, input *runPath) (*struct {
		Body domain.Run `json:"body"`
	}, error) {
		run, err := st.GetRun(ctx, input.RunID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &struct {
			Body domain.Run `json:"body"`
		}{Body: run}, nil
	})
}

func registerObjects(api huma.API, st store.Store) {
	type objectsListInput struct {
		RunID   string `query:"run_id"`
		GUID    string `query:"guid"`
		Current bool   `query:"current"`
		Limit   int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "objects-list",
		Method:      http.MethodGet,
		Path:        "/objects",
		Summary:     "List harvest objects",
	}, func(ctx context.Context, input *objectsListInput) (*struct {
		Body struct {
			Items []domain.HarvestObject `json:"items"`
		} `json:"body"`
	}, error) {
		objs, err := st.ListObjects(ctx, store.ObjectFilters{
			RunID:   input.RunID,
			GUID:    input.GUID,
			Current: input.Current,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		out := &struct {
			Body struct {
				Items []domain.HarvestObject `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Items = objs
		return out, nil
	})
}
