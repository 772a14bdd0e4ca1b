// Package harvest drives one run: gather the views index, filter, map
// and reconcile every dataset, and account the outcomes.
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
	"github.com/opendatazurich/losd-harvester/internal/config"
	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/events"
	"github.com/opendatazurich/losd-harvester/internal/fetch"
	"github.com/opendatazurich/losd-harvester/internal/profile"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
	"github.com/opendatazurich/losd-harvester/internal/store"
	"github.com/opendatazurich/losd-harvester/internal/views"
)

// Runner executes harvest runs. One Runner serves one source; separate
// sources get separate Runners and may run concurrently.
type Runner struct {
	Config     *config.Config
	DB         *sql.DB
	Store      store.Store
	Catalog    catalog.Client
	Events     events.Writer
	Hooks      []catalog.Hook
	Now        func() time.Time
	controller *Controller
}

// New wires a Runner over an open database and catalog client.
func New(cfg *config.Config, db *sql.DB, cat catalog.Client, hooks []catalog.Hook) *Runner {
	r := &Runner{
		Config:  cfg,
		DB:      db,
		Store:   store.Store{DB: db},
		Catalog: cat,
		Events:  events.Writer{DB: db},
		Hooks:   hooks,
		Now:     time.Now,
	}
	r.controller = &Controller{
		DB:      db,
		Store:   r.Store,
		Catalog: cat,
		Events:  r.Events,
		Hooks:   hooks,
		Now:     r.now,
	}
	return r
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) fetcher() *fetch.Fetcher {
	return &fetch.Fetcher{
		Client:   fetch.New().Client,
		Accept:   r.Config.Source.Accept,
		MaxBytes: r.Config.Fetch.MaxBytes,
	}
}

// Run performs one full harvest: gather, filter, map, reconcile, and
// deletion sweep. Individual dataset failures are logged and counted;
// only infrastructure failures abort the run.
func (r *Runner) Run(ctx context.Context) (domain.Run, error) {
	run := domain.Run{
		ID:        uuid.NewString(),
		SourceURL: r.Config.Source.URL,
		Status:    "running",
		StartedAt: r.now().UTC().Format(time.RFC3339),
	}
	if err := r.Store.InsertRun(ctx, run); err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}

	err := r.run(ctx, &run)
	run.FinishedAt = r.now().UTC().Format(time.RFC3339)
	if err != nil {
		run.Status = "aborted"
	} else {
		run.Status = "finished"
	}
	if ferr := r.Store.FinishRun(ctx, run); ferr != nil {
		log.Printf("run %s: persist summary: %v", run.ID, ferr)
	}
	log.Printf("run %s: created=%d updated=%d deleted=%d unchanged=%d failed=%d skipped=%d",
		run.ID, run.Created, run.Updated, run.Deleted, run.Unchanged, run.Failed, run.Skipped)
	return run, err
}

func (r *Runner) run(ctx context.Context, run *domain.Run) error {
	fetcher := r.fetcher()
	timeout := r.Config.Timeout()
	if timeout > 0 {
		fetcher.Client.Timeout = timeout
	}

	gatherer := &views.Gatherer{
		Fetcher:  fetcher,
		Format:   r.Config.Source.RDFFormat,
		MaxPages: r.Config.Source.MaxPages,
	}
	datasets, skipped, err := gatherer.Gather(ctx, r.Config.Source.URL)
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	run.Skipped += skipped

	corpus, err := rdf.Parse(views.Corpus(datasets), r.Config.Source.RDFFormat)
	if err != nil {
		return fmt.Errorf("parse corpus: %w", err)
	}

	profiles, err := r.profiles(fetcher)
	if err != nil {
		return err
	}

	prevGUIDs, err := r.Store.CurrentGUIDs(ctx, r.Config.Source.URL)
	if err != nil {
		return fmt.Errorf("list current guids: %w", err)
	}

	now := r.now()
	seen := map[string]bool{}
	for _, dataset := range datasets {
		// Cancellation is checked between datasets; a record already
		// handed to the controller commits or rolls back whole.
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, reason := IsPublishable(corpus, dataset.URI, now)
		if !ok {
			log.Printf("run %s: skipping %s: %s", run.ID, dataset.URI, reason)
			run.Skipped++
			r.appendSkip(ctx, run.ID, dataset.URI, reason)
			continue
		}

		rec, perr := r.mapRecord(ctx, profiles, corpus, dataset.URI)
		if perr != nil {
			log.Printf("run %s: dropping %s: %v", run.ID, dataset.URI, perr)
			run.Skipped++
			r.appendSkip(ctx, run.ID, dataset.URI, perr.Error())
			continue
		}

		guid := r.guid(rec.Name)
		seen[guid] = true
		obj := domain.HarvestObject{
			RunID:   run.ID,
			GUID:    guid,
			Source:  r.Config.Source.URL,
			Content: string(dataset.Content),
		}
		outcome, rerr := r.controller.Reconcile(ctx, obj, &rec)
		if rerr != nil {
			return fmt.Errorf("reconcile %s: %w", guid, rerr)
		}
		count(run, outcome)
	}

	// Datasets current after the previous run but absent from this one
	// get delete requests.
	for _, guid := range prevGUIDs {
		if seen[guid] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := domain.HarvestObject{
			RunID:  run.ID,
			GUID:   guid,
			Source: r.Config.Source.URL,
			Status: domain.StatusDelete,
		}
		outcome, rerr := r.controller.Reconcile(ctx, obj, nil)
		if rerr != nil {
			return fmt.Errorf("reconcile delete %s: %w", guid, rerr)
		}
		count(run, outcome)
	}
	return nil
}

func (r *Runner) profiles(fetcher *fetch.Fetcher) ([]profile.Profile, error) {
	opts := profile.Options{
		Deref:           &profile.Dereferencer{Fetcher: fetcher, Format: r.Config.Source.RDFFormat},
		Publishers:      profile.PublisherCache{},
		Maintainer:      r.Config.Portal.Maintainer,
		MaintainerEmail: r.Config.Portal.MaintainerEmail,
		Licenses:        r.Config.Portal.Licenses,
	}
	var profiles []profile.Profile
	for _, name := range r.Config.Source.Profiles {
		p, err := profile.New(name, opts)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// mapRecord tries the enabled profiles in order until one produces a
// record.
func (r *Runner) mapRecord(ctx context.Context, profiles []profile.Profile, g *rdf.Graph, datasetURI string) (domain.Record, error) {
	var lastErr error
	for _, p := range profiles {
		rec, err := p.MapRecord(ctx, g, datasetURI)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		var incomplete profile.IncompleteError
		if !errors.As(err, &incomplete) {
			return domain.Record{}, err
		}
	}
	return domain.Record{}, lastErr
}

func (r *Runner) guid(name string) string {
	if r.Config.Source.GUIDPrefix {
		return r.Config.Source.URL + ":" + name
	}
	return name
}

func (r *Runner) appendSkip(ctx context.Context, runID, uri, reason string) {
	if err := r.Events.AppendNoTx(ctx, "dataset.skipped", runID, "", events.EventPayload{
		"uri":    uri,
		"reason": reason,
	}); err != nil {
		log.Printf("run %s: append skip event: %v", runID, err)
	}
}

func count(run *domain.Run, outcome string) {
	switch outcome {
	case domain.OutcomeCreated:
		run.Created++
	case domain.OutcomeUpdated:
		run.Updated++
	case domain.OutcomeDeleted:
		run.Deleted++
	case domain.OutcomeUnchanged:
		run.Unchanged++
	case domain.OutcomeFailed:
		run.Failed++
	}
}
