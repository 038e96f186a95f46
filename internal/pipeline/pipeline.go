// Package pipeline runs a batch of case documents through normalization,
// classification, extraction, resolution, persistence and review.
//
// Extraction fans out over document chunks; everything that touches the
// case graph runs under a per-case lock so dedup decisions never race.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/casegraph/internal/classifier"
	"github.com/ajitpratap0/casegraph/internal/enrich"
	"github.com/ajitpratap0/casegraph/internal/extract"
	"github.com/ajitpratap0/casegraph/internal/graph"
	"github.com/ajitpratap0/casegraph/internal/metrics"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/normalize"
	"github.com/ajitpratap0/casegraph/internal/persist"
	"github.com/ajitpratap0/casegraph/internal/resolve"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/segment"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// Options tunes a Pipeline. Zero fields take the defaults.
type Options struct {
	Concurrency     int
	ElementTimeout  time.Duration
	ReviewThreshold int
	ContextRadius   int
	ChunkTokens     int
	EventWindow     time.Duration
	Write           persist.Options
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = 90 * time.Second
	}
	if o.ReviewThreshold <= 0 {
		o.ReviewThreshold = review.DefaultThreshold
	}
	if o.ContextRadius <= 0 {
		o.ContextRadius = extract.DefaultContextRadius
	}
	if o.ChunkTokens <= 0 {
		o.ChunkTokens = 1500
	}
}

// DocumentResult describes how one document fared.
type DocumentResult struct {
	DocumentID   string              `json:"document_id"`
	Filename     string              `json:"filename,omitempty"`
	DocumentType models.DocumentType `json:"document_type"`
	Chunks       int                 `json:"chunks"`
	Candidates   int                 `json:"candidates"`
	Enriched     int                 `json:"enriched_chunks,omitempty"`
	Errors       []string            `json:"errors,omitempty"`
}

// Report summarizes one pipeline run.
type Report struct {
	CaseID             string           `json:"case_id"`
	Documents          []DocumentResult `json:"documents"`
	EntitiesCreated    int              `json:"entities_created"`
	EntitiesReused     int              `json:"entities_reused"`
	EventsCreated      int              `json:"events_created"`
	EventsSkipped      int              `json:"events_skipped"`
	ConnectionsCreated int              `json:"connections_created"`
	ConnectionsSkipped int              `json:"connections_skipped"`
	AlibisCreated      int              `json:"alibis_created"`
	AlibisSkipped      int              `json:"alibis_skipped"`
	Unresolved         int              `json:"unresolved_references"`
	EnrichFallbacks    int              `json:"enrich_fallbacks"`
	Review             *review.Report   `json:"review,omitempty"`
}

// Pipeline is safe for concurrent use; runs for the same case serialize.
type Pipeline struct {
	store      store.GraphStore
	adapter    *persist.Adapter
	classifier classifier.Classifier
	extractors *extract.Set
	builder    *graph.Builder
	enricher   enrich.Source
	reviewer   *review.Manager
	opts       Options
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Pipeline writing to st. src may be nil, in which case only
// the pattern extractors are used.
func New(st store.GraphStore, src enrich.Source, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	return &Pipeline{
		store:      st,
		adapter:    persist.New(st, opts.Write, logger),
		classifier: classifier.NewClassifier(logger),
		extractors: extract.NewSet(logger, extract.DefaultExtractors(opts.ContextRadius)...),
		builder:    graph.NewBuilder(logger),
		enricher:   src,
		reviewer:   review.NewManager(st, opts.ReviewThreshold, opts.EventWindow, logger),
		opts:       opts,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// chunk is one batch element of the fan-out.
type chunk struct {
	doc      int
	docID    string
	index    int
	text     string
	cands    []models.Candidate
	ex       *models.Extraction
	fallback bool
	err      error
}

type prepared struct {
	doc     models.Document
	text    string
	chunks  []*chunk
	subject *models.EntityRef
	date    string
}

// Run processes docs for caseID. Failures confined to one document or chunk
// are recorded in the report; only store failures abort the run.
func (p *Pipeline) Run(ctx context.Context, caseID string, docs []models.Document) (*Report, error) {
	if caseID == "" {
		return nil, errors.New("case id required")
	}
	report := &Report{CaseID: caseID}

	preps := make([]*prepared, len(docs))
	var all []*chunk
	for i := range docs {
		preps[i] = p.prepare(i, docs[i])
		all = append(all, preps[i].chunks...)
	}

	// Phase 1: candidates per chunk.
	if err := p.fanOut(ctx, all, func(_ context.Context, c *chunk) error {
		c.cands = p.extractors.Extract(c.docID, c.text)
		return nil
	}, failChunk(p.logger)); err != nil {
		return nil, err
	}

	for _, pr := range preps {
		for _, c := range pr.chunks {
			if pr.subject == nil {
				pr.subject = graph.DocumentSubject(c.cands)
			}
			if pr.date == "" {
				pr.date = graph.DocumentDate(c.cands)
			}
		}
	}

	// Phase 2: drafts from the enrichment source when one is configured. Any
	// failure, including a timeout or panic, falls back to the patterns.
	if p.enricher != nil {
		if err := p.fanOut(ctx, all, func(ctx context.Context, c *chunk) error {
			ex, err := p.enricher.Extract(ctx, enrich.Request{
				DocumentID:   c.docID,
				DocumentType: preps[c.doc].doc.DocumentType,
				Text:         c.text,
			})
			if err != nil {
				return err
			}
			c.ex = ex
			return nil
		}, func(c *chunk, err error) {
			c.fallback = true
			metrics.Inc(metrics.EnrichFallbacks)
			p.logger.Warn("enrichment failed, falling back to patterns",
				"document_id", c.docID, "chunk", c.index, "error", err)
		}); err != nil {
			return nil, err
		}
	}

	// Phase 3: pattern drafts for every chunk still without one.
	if err := p.fanOut(ctx, all, func(_ context.Context, c *chunk) error {
		if c.ex != nil {
			return nil
		}
		pr := preps[c.doc]
		c.ex = p.builder.Build(graph.Input{
			DocumentID:    c.docID,
			DocumentType:  pr.doc.DocumentType,
			Text:          c.text,
			Candidates:    c.cands,
			Subject:       pr.subject,
			StatementDate: pr.date,
		})
		return nil
	}, failChunk(p.logger)); err != nil {
		return nil, err
	}

	for _, pr := range preps {
		res := DocumentResult{
			DocumentID:   pr.doc.ID,
			Filename:     pr.doc.Filename,
			DocumentType: pr.doc.DocumentType,
			Chunks:       len(pr.chunks),
		}
		for _, c := range pr.chunks {
			res.Candidates += len(c.cands)
			if c.fallback {
				report.EnrichFallbacks++
			}
			if c.ex != nil && c.ex.Source == models.SourceLLM {
				res.Enriched++
			}
			if c.err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %v", c.index, c.err))
			}
		}
		metrics.Add(metrics.Candidates, res.Candidates)
		if len(res.Errors) > 0 {
			metrics.Inc(metrics.DocumentFailures)
		}
		metrics.Inc(metrics.DocumentsProcessed)
		report.Documents = append(report.Documents, res)
	}

	if err := p.persist(ctx, caseID, all, report); err != nil {
		return report, err
	}

	rev, err := p.reviewer.Run(ctx, caseID)
	if err != nil {
		return report, fmt.Errorf("building review queue: %w", err)
	}
	report.Review = rev

	p.logger.Info("pipeline run complete", "case_id", caseID, "documents", len(docs),
		"entities_created", report.EntitiesCreated, "events_created", report.EventsCreated,
		"alibis_created", report.AlibisCreated, "review_items", len(rev.Items))
	return report, nil
}

// prepare normalizes, classifies and chunks one document.
func (p *Pipeline) prepare(i int, doc models.Document) *prepared {
	text := normalize.Text(doc.RawText)
	if doc.ID == "" {
		doc.ID = DocumentID(doc.Filename, doc.RawText)
	}
	if !doc.DocumentType.IsValid() {
		doc.DocumentType = p.classifier.Classify(text, doc.Filename)
	}
	pr := &prepared{doc: doc, text: text}
	for j, piece := range chunkSections(segment.Split(text), p.opts.ChunkTokens) {
		pr.chunks = append(pr.chunks, &chunk{doc: i, docID: doc.ID, index: j, text: piece})
	}
	p.logger.Debug("document prepared", "document_id", doc.ID, "type", doc.DocumentType, "chunks", len(pr.chunks))
	return pr
}

// DocumentID derives a stable identifier for a document submitted without
// one, so re-submitting it yields the same source references.
func DocumentID(filename, raw string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(filename+"\x00"+raw)).String()
}

// fanOut runs fn over every healthy chunk with bounded concurrency. Each
// element has its own timeout; an element's error or panic is handed to
// onErr and never cancels its siblings. Only cancellation of ctx itself is
// returned.
func (p *Pipeline) fanOut(ctx context.Context, chunks []*chunk, fn func(context.Context, *chunk) error, onErr func(*chunk, error)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, c := range chunks {
		if c.err != nil {
			continue
		}
		g.Go(func() error {
			if err := p.runElement(gctx, c, fn); err != nil {
				onErr(c, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// failChunk marks the chunk failed; its document is reported with an error
// and the chunk contributes nothing further.
func failChunk(logger *slog.Logger) func(*chunk, error) {
	return func(c *chunk, err error) {
		c.err = err
		logger.Warn("chunk failed", "document_id", c.docID, "chunk", c.index, "error", err)
	}
}

func (p *Pipeline) runElement(ctx context.Context, c *chunk, fn func(context.Context, *chunk) error) error {
	ectx, cancel := context.WithTimeout(ctx, p.opts.ElementTimeout)
	defer cancel()

	// fn works on a copy so a timed-out element cannot write to c later.
	done := make(chan error, 1)
	work := *c
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ectx, &work)
	}()

	select {
	case err := <-done:
		if err == nil {
			*c = work
		}
		return err
	case <-ectx.Done():
		return fmt.Errorf("chunk timed out: %w", ectx.Err())
	}
}

func (p *Pipeline) caseLock(caseID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[caseID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[caseID] = l
	}
	return l
}

// persist resolves and writes every chunk's drafts in document order.
func (p *Pipeline) persist(ctx context.Context, caseID string, chunks []*chunk, report *Report) error {
	lock := p.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := p.store.ListEntities(ctx, caseID, "")
	if err != nil {
		return fmt.Errorf("loading case entities: %w", err)
	}
	r := resolve.New(caseID, existing, p.logger)
	preexisting := make(map[string]bool, len(existing))
	for i := range existing {
		preexisting[existing[i].ID] = true
	}
	reused := make(map[string]bool)

	for _, c := range chunks {
		if c.ex == nil {
			continue
		}
		for _, draft := range graph.AllEntities(c.ex) {
			e, created := r.Resolve(draft, c.ex.DocumentID)
			if !created {
				if preexisting[e.ID] && !reused[e.ID] {
					reused[e.ID] = true
					report.EntitiesReused++
				}
				continue
			}
			res, err := p.adapter.Entity(ctx, e)
			if err != nil {
				return err
			}
			if res.ID != e.ID {
				// Another writer stored this name first; keep its ID.
				e.ID = res.ID
				r.Adopt(e)
			}
			if res.Created {
				report.EntitiesCreated++
			} else if !reused[e.ID] {
				reused[e.ID] = true
				report.EntitiesReused++
			}
		}

		plan := graph.Materialize(caseID, c.ex, r)
		report.Unresolved += plan.Unresolved
		if plan.Unresolved > 0 {
			p.logger.Warn("dropped references to unknown entities",
				"case_id", caseID, "document_id", c.docID, "chunk", c.index, "count", plan.Unresolved)
		}

		for _, ev := range plan.Events {
			res, err := p.adapter.Event(ctx, ev)
			if err != nil {
				return err
			}
			count(res.Created, &report.EventsCreated, &report.EventsSkipped)
		}
		for _, pc := range plan.Connections {
			res, err := p.adapter.Connection(ctx, pc.Connection, pc.FromName, pc.ToName)
			if err != nil {
				return err
			}
			count(res.Created, &report.ConnectionsCreated, &report.ConnectionsSkipped)
		}
		for _, pa := range plan.Alibis {
			res, err := p.adapter.Alibi(ctx, pa.Alibi)
			if err != nil {
				return err
			}
			count(res.Created, &report.AlibisCreated, &report.AlibisSkipped)
			if res.Created {
				p.logger.Info("alibi version recorded", "case_id", caseID, "subject", pa.SubjectName, "version", res.Version)
			}
		}
	}
	return nil
}

func count(created bool, yes, no *int) {
	if created {
		*yes++
	} else {
		*no++
	}
}
