package catalog

import (
	"context"
	"log"

	"github.com/opendatazurich/losd-harvester/internal/domain"
)

// SubmitResourcesHook hands every resource of an upserted record to a
// background processor.
type SubmitResourcesHook struct {
	Submit func(ctx context.Context, resourceID string) error
}

func (h SubmitResourcesHook) Name() string { return "submit-resources" }

func (h SubmitResourcesHook) AfterUpsert(ctx context.Context, rec domain.Record) error {
	if h.Submit == nil {
		return nil
	}
	for _, res := range rec.Resources {
		if res.ID == "" {
			continue
		}
		if err := h.Submit(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

// DefaultViewsHook asks the portal to generate default views for a record.
type DefaultViewsHook struct {
	Generate func(ctx context.Context, rec domain.Record) error
}

func (h DefaultViewsHook) Name() string { return "default-views" }

func (h DefaultViewsHook) AfterUpsert(ctx context.Context, rec domain.Record) error {
	if h.Generate == nil {
		log.Printf("hook default-views: no generator configured, skipping %s", rec.Name)
		return nil
	}
	return h.Generate(ctx, rec)
}
