package harvest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/opendatazurich/losd-harvester/internal/catalog"
	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/events"
	"github.com/opendatazurich/losd-harvester/internal/store"
)

// Controller reconciles mapped records against the stored catalog by
// identity key. It sequences the catalog calls and keeps the
// current-flag bookkeeping consistent with them: flag flips commit in
// the same transaction window as the catalog mutation and roll back when
// the mutation fails.
type Controller struct {
	DB      *sql.DB
	Store   store.Store
	Catalog catalog.Client
	Events  events.Writer
	Hooks   []catalog.Hook
	Now     func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Reconcile processes one harvest object and returns the outcome. A
// ValidationError from the catalog yields OutcomeFailed with a nil
// error; the run continues. A non-nil error means bookkeeping itself
// failed and the run should stop.
func (c *Controller) Reconcile(ctx context.Context, obj domain.HarvestObject, draft *domain.Record) (string, error) {
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	if obj.Created == "" {
		obj.Created = c.now().UTC().Format(time.RFC3339)
	}

	prev, err := c.Store.CurrentByGUID(ctx, obj.GUID)
	havePrev := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup current object for %s: %w", obj.GUID, err)
	}

	if obj.Status == domain.StatusDelete {
		return c.reconcileDelete(ctx, obj, prev, havePrev)
	}

	// Unchanged content short-circuits before any catalog call.
	if havePrev && prev.Status != domain.StatusDelete && prev.Outcome != domain.OutcomeFailed && prev.Content == obj.Content {
		obj.Status = domain.StatusChange
		obj.Outcome = domain.OutcomeUnchanged
		obj.RecordID = prev.RecordID
		obj.Current = true
		if err := c.commitFlip(ctx, obj, "object.unchanged", nil); err != nil {
			return "", err
		}
		return domain.OutcomeUnchanged, nil
	}

	existing, found, err := c.findExisting(ctx, obj.GUID, draft.Name)
	if err != nil {
		return "", err
	}

	var op string
	if found {
		// Slug and internal id are immutable post-creation.
		draft.ID = existing.ID
		draft.Name = existing.Name
		draft.Resources = reconcileResources(existing.Resources, draft.Resources)
		obj.Status = domain.StatusChange
		obj.Outcome = domain.OutcomeUpdated
		op = "object.updated"
	} else {
		draft.ID = uuid.NewString()
		obj.Status = domain.StatusNew
		obj.Outcome = domain.OutcomeCreated
		op = "object.created"
	}
	obj.RecordID = draft.ID
	obj.Current = true

	mutate := func(tx *sql.Tx) error {
		if found {
			return c.Catalog.UpdateTx(ctx, tx, *draft)
		}
		id, err := c.Catalog.CreateTx(ctx, tx, obj.GUID, *draft)
		if err != nil {
			return err
		}
		draft.ID = id
		return nil
	}
	if err := c.commitFlip(ctx, obj, op, mutate); err != nil {
		var verr catalog.ValidationError
		if errors.As(err, &verr) {
			c.recordFailure(ctx, obj, verr)
			return domain.OutcomeFailed, nil
		}
		return "", err
	}

	c.runHooks(ctx, obj, *draft)
	return obj.Outcome, nil
}

func (c *Controller) reconcileDelete(ctx context.Context, obj domain.HarvestObject, prev domain.HarvestObject, havePrev bool) (string, error) {
	recordID := obj.RecordID
	if recordID == "" && havePrev {
		recordID = prev.RecordID
	}
	if recordID == "" {
		if rec, err := c.Catalog.FindByIdentity(ctx, obj.GUID); err == nil {
			recordID = rec.ID
		}
	}
	obj.RecordID = recordID
	obj.Outcome = domain.OutcomeDeleted
	obj.Current = true

	mutate := func(tx *sql.Tx) error {
		if recordID == "" {
			return nil
		}
		if err := c.Catalog.DeleteTx(ctx, tx, recordID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return err
		}
		return nil
	}
	if err := c.commitFlip(ctx, obj, "object.deleted", mutate); err != nil {
		var verr catalog.ValidationError
		if errors.As(err, &verr) {
			c.recordFailure(ctx, obj, verr)
			return domain.OutcomeFailed, nil
		}
		return "", err
	}
	return domain.OutcomeDeleted, nil
}

// commitFlip performs the current-flag flip, the event append, and the
// catalog mutation in one transaction: the mutation runs on the same tx,
// so a mutation failure rolls the flip back.
func (c *Controller) commitFlip(ctx context.Context, obj domain.HarvestObject, evtType string, mutate func(*sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := c.Store.ClearCurrentTx(ctx, tx, obj.GUID); err != nil {
		return fmt.Errorf("clear current flag for %s: %w", obj.GUID, err)
	}
	if err := c.Store.InsertObjectTx(ctx, tx, obj); err != nil {
		return fmt.Errorf("insert harvest object for %s: %w", obj.GUID, err)
	}
	if err := c.Events.Append(ctx, tx, evtType, obj.RunID, obj.GUID, events.EventPayload{
		"outcome":   obj.Outcome,
		"record_id": obj.RecordID,
	}); err != nil {
		return err
	}
	if mutate != nil {
		if err := mutate(tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// recordFailure persists a failed, non-current object after the flip was
// rolled back, so the previous current object stays the diff base.
func (c *Controller) recordFailure(ctx context.Context, obj domain.HarvestObject, cause error) {
	log.Printf("upsert: %s failed validation: %v", obj.GUID, cause)
	obj.ID = uuid.NewString()
	obj.Current = false
	obj.Outcome = domain.OutcomeFailed
	obj.Error = cause.Error()

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("upsert: record failure for %s: %v", obj.GUID, err)
		return
	}
	defer tx.Rollback()
	if err := c.Store.InsertObjectTx(ctx, tx, obj); err != nil {
		log.Printf("upsert: record failure for %s: %v", obj.GUID, err)
		return
	}
	if err := c.Events.Append(ctx, tx, "object.failed", obj.RunID, obj.GUID, events.EventPayload{"error": cause.Error()}); err != nil {
		log.Printf("upsert: record failure for %s: %v", obj.GUID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("upsert: record failure for %s: %v", obj.GUID, err)
	}
}

func (c *Controller) findExisting(ctx context.Context, guid, name string) (domain.Record, bool, error) {
	rec, err := c.Catalog.FindByIdentity(ctx, guid)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return domain.Record{}, false, err
	}
	// Fallback for records whose identity key was stripped by an
	// out-of-band edit.
	rec, err = c.Catalog.FindByName(ctx, name)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return domain.Record{}, false, err
	}
	return domain.Record{}, false, nil
}

// reconcileResources carries stored resource ids forward by matching on
// the stable uri, so the catalog updates resources instead of recreating
// them.
func reconcileResources(existing, incoming []domain.Resource) []domain.Resource {
	byURI := make(map[string]string, len(existing))
	for _, res := range existing {
		if res.URI != "" {
			byURI[res.URI] = res.ID
		}
	}
	for i := range incoming {
		if incoming[i].ID != "" {
			continue
		}
		if id, ok := byURI[incoming[i].URI]; ok {
			incoming[i].ID = id
		}
	}
	return incoming
}

// runHooks fires post-processing hooks after a committed mutation. Each
// hook fails independently; failures warn but never undo the commit.
func (c *Controller) runHooks(ctx context.Context, obj domain.HarvestObject, rec domain.Record) {
	for _, hook := range c.Hooks {
		if err := hook.AfterUpsert(ctx, rec); err != nil {
			log.Printf("hook %s: %s: %v", hook.Name(), obj.GUID, err)
			if aerr := c.Events.AppendNoTx(ctx, "hook.failed", obj.RunID, obj.GUID, events.EventPayload{
				"hook":  hook.Name(),
				"error": err.Error(),
			}); aerr != nil {
				log.Printf("hook %s: append event: %v", hook.Name(), aerr)
			}
		}
	}
}
