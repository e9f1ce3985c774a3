package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/openjob/internal/model"
)

// Orchestrator decides which postings a run processes and records per-posting
// outcomes as they complete. One orchestrator drives one logical run at a time.
type Orchestrator struct {
	scraper   model.Scraper
	store     model.RecordStore
	processor *Processor
	notifier  model.Notifier
	targets   map[model.Category]int // per-category success targets for full runs
	workers   int
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator wired with all its dependencies.
func NewOrchestrator(
	scraper model.Scraper,
	store model.RecordStore,
	processor *Processor,
	notifier model.Notifier,
	targets map[model.Category]int,
	workers int,
	logger *slog.Logger,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		scraper:   scraper,
		store:     store,
		processor: processor,
		notifier:  notifier,
		targets:   targets,
		workers:   workers,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes a full run: discover postings, skip already-seen ones, and
// process the rest under per-category success caps. Postings not admitted
// because a cap was met are recorded pending, not discarded.
//
// Discovery failure is fatal: there is nothing to dedup or retry against.
func (o *Orchestrator) Run(ctx context.Context) (model.RunResult, error) {
	date := o.today()

	postings, err := o.scraper.Discover(ctx)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("discovery failed: %w", err)
	}
	o.logger.Info("discovery complete", "date", date, "postings", len(postings))

	var unseen []model.Posting
	for _, p := range postings {
		seen, err := o.store.HasSeen(p.ID)
		if err != nil {
			// Best-effort ledger: an unreadable entry only risks re-processing.
			o.logger.Warn("seen check failed, treating as unseen", "posting", p.ID, "error", err)
		}
		if !seen {
			unseen = append(unseen, p)
		}
	}
	o.logger.Info("dedup complete", "new", len(unseen), "skipped", len(postings)-len(unseen))

	// Extend today's record with the new discoveries before processing, so a
	// crash mid-run still leaves every discovered posting on the books.
	record, err := o.store.LoadDay(date)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("loading day record: %w", err)
	}
	for _, p := range unseen {
		if _, ok := record.Entry(p.ID); !ok {
			record.Upsert(model.DayEntry{Posting: p, Outcome: model.Pending()})
		}
	}
	if err := o.store.SaveDay(record); err != nil {
		return model.RunResult{}, fmt.Errorf("saving day record: %w", err)
	}

	result := o.processAll(ctx, date, unseen, true)
	o.notify(result)
	return result, nil
}

// RetrySingle re-runs the per-posting pipeline for one synthetic posting,
// bypassing the seen ledger entirely. Its outcome is folded into today's day
// record regardless of when the posting was originally discovered.
func (o *Orchestrator) RetrySingle(ctx context.Context, posting model.Posting) (model.RunResult, error) {
	date := o.today()

	record, err := o.store.LoadDay(date)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("loading day record: %w", err)
	}
	if existing, ok := record.Entry(posting.ID); ok {
		// Keep any metadata already on file that the caller did not supply.
		posting = mergePosting(existing.Posting, posting)
	}
	if posting.Category == "" {
		posting.Category = model.CategoryAI
	}
	record.Upsert(model.DayEntry{Posting: posting, Outcome: model.Pending()})
	if err := o.store.SaveDay(record); err != nil {
		return model.RunResult{}, fmt.Errorf("saving day record: %w", err)
	}

	return o.processAll(ctx, date, []model.Posting{posting}, false), nil
}

// RetryDay re-runs exactly the postings whose outcome for date is failed or
// pending, in their original discovery order, without scraping. A date with no
// record, or nothing left to do, is a successful no-op.
func (o *Orchestrator) RetryDay(ctx context.Context, date string) (model.RunResult, error) {
	if date == "" {
		date = o.today()
	}

	record, err := o.store.LoadDay(date)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("loading day record: %w", err)
	}

	unfinished := record.Unfinished()
	if len(unfinished) == 0 {
		o.logger.Info("nothing to retry", "date", date)
		return model.RunResult{RunID: uuid.NewString(), Date: date}, nil
	}

	o.logger.Info("retrying unfinished postings", "date", date, "count", len(unfinished))
	postings := make([]model.Posting, len(unfinished))
	for i, e := range unfinished {
		postings[i] = e.Posting
	}

	result := o.processAll(ctx, date, postings, false)
	o.notify(result)
	return result, nil
}

// attempt is one completed per-posting pipeline invocation.
type attempt struct {
	posting model.Posting
	err     error
}

// processAll drives the given postings through the per-job pipeline with
// bounded fan-out. All store writes happen on this goroutine, so day-record
// updates are serialized by construction.
//
// When capped is true, a posting is only dispatched while its category still
// needs successes; a failed attempt frees its admission slot so a later
// posting of the same category can take it. Postings never admitted stay
// pending in the day record.
func (o *Orchestrator) processAll(ctx context.Context, date string, postings []model.Posting, capped bool) model.RunResult {
	result := model.RunResult{RunID: uuid.NewString(), Date: date}

	budget := make(map[model.Category]int, len(o.targets))
	for cat, n := range o.targets {
		budget[cat] = n
	}

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	// Buffered so a finished worker never blocks on the coordinator.
	results := make(chan attempt, len(postings))

	outcomes := make(map[string]model.Outcome, len(postings))
	queue := postings
	inflight := 0

	for {
		var waitlist []model.Posting
		for _, p := range queue {
			if ctx.Err() != nil {
				// Stop admitting on cancellation; in-flight postings finish.
				waitlist = append(waitlist, p)
				continue
			}
			if capped && budget[p.Category] <= 0 {
				waitlist = append(waitlist, p)
				continue
			}
			if capped {
				budget[p.Category]--
			}
			inflight++
			posting := p
			g.Go(func() error {
				results <- attempt{posting: posting, err: o.processOne(ctx, date, posting)}
				return nil
			})
		}
		queue = nil

		if inflight == 0 {
			// Nothing running and nothing admissible: whatever is left on the
			// waitlist stays pending.
			for _, p := range waitlist {
				outcomes[p.ID] = model.Pending()
			}
			break
		}

		a := <-results
		inflight--
		outcomes[a.posting.ID] = o.commitOutcome(date, a)
		if a.err != nil && capped {
			// The slot this posting held is free again for its category.
			budget[a.posting.Category]++
		}
		// Re-examine deferred postings now that budget may have changed.
		queue = waitlist
	}
	g.Wait()

	for _, p := range postings {
		outcome, ok := outcomes[p.ID]
		if !ok {
			outcome = model.Pending()
		}
		result.Add(model.DayEntry{Posting: p, Outcome: outcome})
	}

	o.logger.Info("run complete",
		"run_id", result.RunID,
		"date", date,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"pending", result.Pending,
	)
	return result
}

// commitOutcome makes one posting's result durable immediately. Store errors
// are logged, never fatal: the worst case is re-processing on a later run.
func (o *Orchestrator) commitOutcome(date string, a attempt) model.Outcome {
	if a.err != nil {
		o.logger.Error("posting failed",
			"posting", a.posting.ID,
			"company", a.posting.Company,
			"error", a.err,
		)
		outcome := model.Failed(a.err.Error())
		if err := o.store.UpdateOutcome(date, a.posting.ID, outcome); err != nil {
			o.logger.Warn("recording failure outcome failed", "posting", a.posting.ID, "error", err)
		}
		return outcome
	}

	if err := o.store.MarkSeen(a.posting.ID); err != nil {
		o.logger.Warn("marking posting seen failed", "posting", a.posting.ID, "error", err)
	}
	outcome := model.Succeeded()
	if err := o.store.UpdateOutcome(date, a.posting.ID, outcome); err != nil {
		o.logger.Warn("recording success outcome failed", "posting", a.posting.ID, "error", err)
	}
	return outcome
}

// processOne guards the per-job boundary: nothing that happens while
// processing a single posting may take down the run.
func (o *Orchestrator) processOne(ctx context.Context, date string, posting model.Posting) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()
	return o.processor.Process(ctx, date, posting)
}

func (o *Orchestrator) notify(result model.RunResult) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(result); err != nil {
		o.logger.Warn("notification failed", "error", err)
	}
}

func (o *Orchestrator) today() string {
	return o.now().Format("2006-01-02")
}

// mergePosting fills empty fields of override from base.
func mergePosting(base, override model.Posting) model.Posting {
	out := override
	if out.Title == "" {
		out.Title = base.Title
	}
	if out.Company == "" {
		out.Company = base.Company
	}
	if out.Location == "" {
		out.Location = base.Location
	}
	if out.Category == "" {
		out.Category = base.Category
	}
	if out.Description == "" {
		out.Description = base.Description
	}
	return out
}
