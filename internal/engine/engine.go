// Package engine wires ingestion, assembly, folding and indexing behind a
// single writer and exposes read-only queries over index snapshots.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"loginsight/internal/assemble"
	"loginsight/internal/config"
	"loginsight/internal/correlate"
	"loginsight/internal/decode"
	"loginsight/internal/detect"
	"loginsight/internal/errors"
	"loginsight/internal/extract"
	"loginsight/internal/filter"
	"loginsight/internal/fold"
	"loginsight/internal/ingest"
	"loginsight/internal/model"
	"loginsight/internal/profile"
	"loginsight/internal/report"
	"loginsight/internal/stats"
	"loginsight/internal/util/logx"
)

const (
	detectSampleLines = 200
	feedChunk         = 1024
	feedDepth         = 4
)

var errAlreadyFollowing = errors.New("engine: already following")

type Options struct {
	// Live keeps trailing partial lines and open records after Load so
	// that Follow can continue seamlessly.
	Live bool
}

type Engine struct {
	cfg  *config.Config
	pat  *config.Patterns
	opt  Options
	norm *decode.Normalizer
	corr *correlate.Extractor
	fold *fold.Folder // rule lookups only; each pipeline owns its own folder
	prof *profile.Profiler
	log  zerolog.Logger

	index *model.Index
	agg   atomic.Pointer[stats.Aggregator]

	// rmu serializes rebuilds; wmu serializes every write to the pipeline
	// and its index.
	rmu   sync.Mutex
	wmu   sync.Mutex
	pipe  *pipeline
	start *regexp.Regexp

	mu           sync.Mutex
	sources      []ingest.Source
	states       map[int]ingest.TailState
	encodings    map[int]decode.Encoding
	warnings     []error // resolution, kept across rebuilds
	readWarnings []error // reading and decoding, replaced by every rebuild
	following    bool

	resetReq chan chan error
	changed  chan struct{}
}

// New validates configuration-derived collaborators. cfg and p are shared
// read-only by every component.
func New(cfg *config.Config, p *config.Patterns, opt Options) (*Engine, error) {
	norm, err := decode.New(cfg.Parser.LegacyEncoding)
	if err != nil {
		return nil, err
	}
	rules, err := fold.New(p.FoldRules)
	if err != nil {
		return nil, err
	}
	health, err := stats.HealthFromConfig(cfg.Stats.HealthExpression)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		pat:       p,
		opt:       opt,
		norm:      norm,
		corr:      correlate.New(p.Correlation),
		fold:      rules,
		prof:      profile.New(profile.Thresholds{Warn: cfg.Profiler.WarnThreshold, Severe: cfg.Profiler.SevereThreshold}),
		log:       logx.Component("engine"),
		index:     model.NewIndex(),
		states:    make(map[int]ingest.TailState),
		encodings: make(map[int]decode.Encoding),
		resetReq:  make(chan chan error),
		changed:   make(chan struct{}, 1),
		start:     p.EntryStart,
	}
	e.agg.Store(e.newStats(health))
	return e, nil
}

func (e *Engine) newStats(health stats.HealthFunc) *stats.Aggregator {
	return stats.New(stats.Options{
		Bucket:       e.cfg.Stats.Bucket,
		HealthWindow: e.cfg.Stats.HealthWindow,
		Health:       health,
	})
}

// Load resolves inputs and ingests every source. Unreadable sources are
// skipped with a warning.
func (e *Engine) Load(ctx context.Context, inputs []string) error {
	srcs, warnings, err := ingest.Resolve(inputs)
	for _, w := range warnings {
		e.warn(w)
	}
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.sources = srcs
	e.mu.Unlock()
	return e.rebuild(ctx)
}

// Reset rebuilds the index from the sources off to the side and swaps it in.
// Readers see either the old or the new index, never a mix.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	following := e.following
	e.mu.Unlock()
	if !following {
		return e.rebuild(ctx)
	}
	done := make(chan error, 1)
	select {
	case e.resetReq <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sourceRead carries the lines of one source from its reader goroutine to
// the rebuild loop in bounded chunks.
type sourceRead struct {
	lines chan []model.RawLine
	state ingest.TailState
	err   error
}

func (e *Engine) rebuild(ctx context.Context) error {
	e.rmu.Lock()
	defer e.rmu.Unlock()

	srcs := e.Sources()
	if len(srcs) == 0 {
		return errors.ErrNoSources
	}
	began := time.Now()

	p, err := e.newPipeline(model.NewIndex(), e.entryStart(srcs))
	if err != nil {
		return err
	}

	reads := make([]*sourceRead, len(srcs))
	for i := range reads {
		reads[i] = &sourceRead{lines: make(chan []model.RawLine, feedDepth)}
	}

	// Sources are decoded in parallel but consumed strictly in order. A
	// reader slot is only taken by a source once every earlier source has
	// started, so the consumer never waits on a reader that cannot run.
	rctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(rctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, src := range srcs {
			g.Go(func() error {
				e.readSource(gctx, src, reads[i])
				return nil
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	var warnings []error
	states := make(map[int]ingest.TailState, len(srcs))
	for i, src := range srcs {
		r := reads[i]
		for chunk := range r.lines {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, l := range chunk {
				p.push(l)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.opt.Live {
			if rec := p.asm.Flush(src.ID); rec != nil {
				p.emit(rec)
			}
		}
		if r.err != nil {
			e.log.Warn().Err(r.err).Msg("source skipped")
			warnings = append(warnings, r.err)
			continue
		}
		states[src.ID] = r.state
		if r.state.Degraded() {
			warnings = append(warnings, lossyWarning(src.Path))
		}
	}

	e.wmu.Lock()
	e.index.Replace(p.index)
	p.index = e.index
	e.pipe = p
	e.agg.Store(p.stats)
	e.wmu.Unlock()

	e.mu.Lock()
	e.states = states
	e.encodings = make(map[int]decode.Encoding, len(states))
	for id, st := range states {
		e.encodings[id] = st.Encoding
	}
	e.readWarnings = warnings
	e.mu.Unlock()

	e.log.Info().Int("sources", len(srcs)).Int("records", e.index.Len()).Dur("took", time.Since(began)).Msg("index built")
	e.notify()
	return nil
}

// readSource decodes one source and hands its lines over in chunks.
func (e *Engine) readSource(ctx context.Context, src ingest.Source, r *sourceRead) {
	defer close(r.lines)
	chunk := make([]model.RawLine, 0, feedChunk)
	send := func() {
		select {
		case r.lines <- chunk:
			chunk = make([]model.RawLine, 0, feedChunk)
		case <-ctx.Done():
		}
	}
	r.state, r.err = ingest.ReadFile(ctx, src, e.norm, ingest.ReadOptions{HoldPartial: e.opt.Live}, func(l model.RawLine) {
		chunk = append(chunk, l)
		if len(chunk) == feedChunk {
			send()
		}
	})
	if len(chunk) > 0 {
		send()
	}
}

func lossyWarning(path string) error {
	return fmt.Errorf("%w: %s decoded lossily", errors.ErrEncoding, path)
}

func (e *Engine) newPipeline(idx *model.Index, start *regexp.Regexp) (*pipeline, error) {
	folder, err := fold.New(e.pat.FoldRules)
	if err != nil {
		return nil, err
	}
	health, err := stats.HealthFromConfig(e.cfg.Stats.HealthExpression)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		asm: assemble.New(assemble.Options{
			Start:    start,
			Ignore:   e.pat.Ignore,
			MaxLines: e.cfg.Parser.MaxContinuationLines,
			MaxBytes: e.cfg.Parser.MaxRecordBytes,
		}),
		ext:   extract.New(e.pat),
		fold:  folder,
		index: idx,
		stats: e.newStats(health),
	}, nil
}

// entryStart returns the configured start pattern, or detects one from the
// first lines of each source, falling back to the log pattern.
func (e *Engine) entryStart(srcs []ingest.Source) *regexp.Regexp {
	if e.start != nil {
		return e.start
	}
	var sample []string
	for _, src := range srcs {
		head, err := ingest.Head(src, e.norm, detectSampleLines)
		if err != nil {
			continue
		}
		sample = append(sample, head...)
	}
	if len(sample) == 0 {
		return e.pat.LogPattern
	}
	g := detect.StartPattern(sample)
	if g.Start == nil {
		e.log.Info().Msg("no known entry start shape, using log pattern")
		e.start = e.pat.LogPattern
	} else {
		e.log.Info().Str("shape", g.Name).Float64("confidence", g.Confidence).Msg("entry start detected")
		e.start = g.Start
	}
	return e.start
}

// Follow tails every source until ctx ends. Lines flow from the monitor
// through a channel to this goroutine, which is the only index writer.
func (e *Engine) Follow(ctx context.Context) error {
	if len(e.Sources()) == 0 {
		return errors.ErrNoSources
	}
	e.mu.Lock()
	if e.following {
		e.mu.Unlock()
		return errAlreadyFollowing
	}
	e.following = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.following = false
		e.mu.Unlock()
	}()

	for {
		done, err := e.followOnce(ctx)
		if done == nil {
			return err
		}
		done <- e.rebuild(ctx)
	}
}

// followOnce runs one monitor generation. It returns a non-nil reply channel
// when a reset interrupted it.
func (e *Engine) followOnce(ctx context.Context) (chan error, error) {
	mctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	states := make(map[int]ingest.TailState, len(e.states))
	for k, v := range e.states {
		states[k] = v
	}
	srcs := append([]ingest.Source(nil), e.sources...)
	e.mu.Unlock()

	mon := ingest.NewMonitor(e.norm, e.cfg.Tail.PollInterval, srcs, states)
	var pending chan error
	resets := e.resetReq

	g, gctx := errgroup.WithContext(mctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error {
		tick := time.NewTicker(e.cfg.Tail.PollInterval)
		defer tick.Stop()
		for {
			select {
			case b, ok := <-mon.Batches():
				if !ok {
					return nil
				}
				e.apply(b)
			case <-tick.C:
				e.flushIdle()
			case done := <-resets:
				pending, resets = done, nil
				cancel()
			}
		}
	})
	err := g.Wait()
	if pending != nil {
		return pending, nil
	}
	if ctx.Err() != nil {
		return nil, nil
	}
	return nil, err
}

func (e *Engine) apply(b ingest.Batch) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.pipe == nil {
		return
	}
	if b.Err != nil {
		e.readWarn(b.Err)
	}
	e.noteEncoding(b.SourceID, b.Encoding)
	if b.Rotated {
		e.log.Info().Int("source", b.SourceID).Int("generation", b.Generation).Msg("source rotated")
		e.pipe.rotate(b.SourceID, b.Generation)
	}
	before := e.index.Len()
	for _, l := range b.Lines {
		e.pipe.push(l)
	}
	if e.index.Len() != before || b.Rotated {
		e.notify()
	}
}

func (e *Engine) flushIdle() {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.pipe == nil {
		return
	}
	before := e.index.Len()
	e.pipe.emitAll(e.pipe.asm.FlushIdle(e.cfg.Tail.IdleFlush))
	if e.index.Len() != before {
		e.notify()
	}
}

// Flush closes every open record, e.g. when following stops.
func (e *Engine) Flush() {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.pipe == nil {
		return
	}
	e.pipe.emitAll(e.pipe.asm.FlushAll())
	e.notify()
}

func (e *Engine) notify() {
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

// Changed fires (coalesced) whenever new records become visible.
func (e *Engine) Changed() <-chan struct{} { return e.changed }

func (e *Engine) warn(err error) {
	e.log.Warn().Err(err).Msg("source skipped")
	e.mu.Lock()
	e.warnings = append(e.warnings, err)
	e.mu.Unlock()
}

func (e *Engine) readWarn(err error) {
	e.log.Warn().Err(err).Msg("source degraded")
	e.mu.Lock()
	e.readWarnings = append(e.readWarnings, err)
	e.mu.Unlock()
}

// noteEncoding records the encoding a live batch reported and warns the
// first time a source turns lossy.
func (e *Engine) noteEncoding(sourceID int, enc decode.Encoding) {
	e.mu.Lock()
	prev := e.encodings[sourceID]
	e.encodings[sourceID] = enc
	e.mu.Unlock()
	if enc == decode.Lossy && prev != decode.Lossy {
		e.readWarn(lossyWarning(e.SourcePath(sourceID)))
	}
}

// Warnings lists unreadable inputs and sources that decoded lossily.
func (e *Engine) Warnings() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]error(nil), e.warnings...)
	return append(out, e.readWarnings...)
}

// Encoding reports the widest encoding source id has needed so far.
func (e *Engine) Encoding(sourceID int) decode.Encoding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodings[sourceID]
}

// Degraded reports whether any line of source id was decoded lossily.
func (e *Engine) Degraded(sourceID int) bool {
	return e.Encoding(sourceID) == decode.Lossy
}

func (e *Engine) Sources() []ingest.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ingest.Source(nil), e.sources...)
}

// SourcePath maps a source id to its path.
func (e *Engine) SourcePath(id int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.sources {
		if s.ID == id {
			return s.Path
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) Snapshot() model.Snapshot { return e.index.Snapshot() }

func (e *Engine) Record(id uint64) (*model.Record, error) {
	r, ok := e.Snapshot().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errors.ErrRecordNotFound, id)
	}
	return r, nil
}

// Evaluator compiles c against the wall clock with the engine's correlation
// lookup, for callers that match records one at a time.
func (e *Engine) Evaluator(c filter.Criteria) (*filter.Evaluator, error) {
	return filter.Compile(c, time.Now(), filter.WithCorrelation(e.corr.ID))
}

// Filter evaluates c over the current snapshot.
func (e *Engine) Filter(ctx context.Context, c filter.Criteria) ([]uint64, error) {
	ev, err := e.Evaluator(c)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(ctx, e.Snapshot())
}

// Trace returns the correlation id of record id and every record sharing it.
func (e *Engine) Trace(ctx context.Context, id uint64) (string, []uint64, error) {
	snap := e.Snapshot()
	r, ok := snap.Get(id)
	if !ok {
		return "", nil, fmt.Errorf("%w: %d", errors.ErrRecordNotFound, id)
	}
	return e.corr.Trace(ctx, snap, r)
}

// Profile computes per-thread deltas over ids only.
func (e *Engine) Profile(ctx context.Context, ids []uint64) (map[uint64]profile.Delta, error) {
	return e.prof.Compute(ctx, e.Snapshot(), ids)
}

func (e *Engine) Stats() stats.Stats { return e.agg.Load().Snapshot() }

// Report builds the analysis report over ids, including per-thread timing.
func (e *Engine) Report(ctx context.Context, ids []uint64, period report.Period) (*report.Report, error) {
	snap := e.Snapshot()
	deltas, err := e.prof.Compute(ctx, snap, ids)
	if err != nil {
		return nil, err
	}
	health, err := stats.HealthFromConfig(e.cfg.Stats.HealthExpression)
	if err != nil {
		return nil, err
	}
	return report.Build(ctx, snap.Records(ids), deltas, report.Options{
		Period:       period,
		Health:       health,
		HealthWindow: e.cfg.Stats.HealthWindow,
		SourceName:   e.SourcePath,
	})
}

// FoldRule names the fold rule r matches, if any.
func (e *Engine) FoldRule(r *model.Record) (string, bool) { return e.fold.RuleName(r) }

// Correlator exposes the correlation extractor for single-record lookups.
func (e *Engine) Correlator() *correlate.Extractor { return e.corr }
