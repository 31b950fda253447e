// Package orchestrator routes source files to their language support, runs
// parse and extraction under a per-file budget, and publishes the resulting
// symbol batches.
//
// Every failure is confined to its file. A scan reports one FileResult per
// input, in input order, whatever happens to the other files.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/corey/symdex/internal/domain/document"
	"github.com/corey/symdex/internal/logging"
	"github.com/corey/symdex/internal/ports"
)

// Diagnostic constructs added by the orchestrator itself.
const (
	DiagUndeclaredKind = "UndeclaredKind"
	DiagInvalidSymbol  = "InvalidSymbol"
	DiagGrammarVersion = "GrammarVersion"
)

// Languages resolves language tags to implementations.
type Languages interface {
	Get(name string) (ports.LanguageSupport, bool)
	Languages() []string
}

// Capabilities is the part of the capability registry the orchestrator uses.
type Capabilities interface {
	ports.CapabilityChecker
	Known(language, grammarVersion string) bool
	LanguageForPath(path string) string
	Hints(language, grammarVersion string) []string
}

// SymbolSink receives finished batches.
type SymbolSink interface {
	Upsert(batch *ports.SymbolBatch) error
	Remove(fileID string) error
	MaxRevision() uint64
}

// Config tunes an Orchestrator. Zero values pick defaults.
type Config struct {
	// Workers bounds parallel files in Scan. Default: GOMAXPROCS.
	Workers int
	// FileTimeout bounds parse plus extract of one file. Zero disables it.
	FileTimeout time.Duration
	// MeterProvider receives metrics. Default: the global otel provider.
	MeterProvider metric.MeterProvider
}

// Request is one extraction job.
type Request struct {
	FileID   string
	Content  []byte
	Language string // optional; inferred from FileID when empty or unknown
	Edit     *ports.InputEdit
}

// FileResult is the outcome for one file. Exactly one of Batch and Err is set.
// StoreErr reports a failed publish; the batch is still valid.
type FileResult struct {
	FileID   string
	Batch    *ports.SymbolBatch
	Err      *ExtractionError
	StoreErr error
}

// ScanReport collects the results of a Scan in input order.
type ScanReport struct {
	ScanID   string
	Results  []FileResult
	Duration time.Duration
}

// Succeeded counts files with a batch.
func (r *ScanReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Batch != nil {
			n++
		}
	}
	return n
}

// Failures counts failed files by kind.
func (r *ScanReport) Failures() map[ErrorKind]int {
	out := make(map[ErrorKind]int)
	for _, res := range r.Results {
		if res.Err != nil {
			out[res.Err.Kind]++
		}
	}
	return out
}

// Symbols counts symbols across all batches.
func (r *ScanReport) Symbols() int {
	n := 0
	for _, res := range r.Results {
		if res.Batch != nil {
			n += len(res.Batch.Symbols)
		}
	}
	return n
}

// Orchestrator is the Parser Orchestrator.
type Orchestrator struct {
	cfg     Config
	langs   Languages
	caps    Capabilities
	docs    *document.Manager
	store   SymbolSink
	metrics *metrics

	revision atomic.Uint64
}

// New wires an orchestrator. store may be nil, in which case batches are only
// returned. The revision counter continues from the store's highest revision
// so batches submitted after a warm start always supersede persisted ones.
func New(cfg Config, langs Languages, caps Capabilities, docs *document.Manager, store SymbolSink) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if docs == nil {
		docs = document.NewManager(document.Config{})
	}
	o := &Orchestrator{
		cfg:     cfg,
		langs:   langs,
		caps:    caps,
		docs:    docs,
		store:   store,
		metrics: newMetrics(cfg.MeterProvider),
	}
	if store != nil {
		o.revision.Store(store.MaxRevision())
	}
	return o
}

// Documents exposes the document cache.
func (o *Orchestrator) Documents() *document.Manager { return o.docs }

func (o *Orchestrator) log() logging.Logger { return logging.WithComponent("orchestrator") }

// Extract runs one file and returns its batch. The returned error, if any, is
// always an *ExtractionError. Publishing to the store is best effort; use
// ExtractFile to observe store failures.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (*ports.SymbolBatch, error) {
	res := o.ExtractFile(ctx, req)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Batch, nil
}

// ExtractFile runs one file and publishes the batch on success.
func (o *Orchestrator) ExtractFile(ctx context.Context, req Request) FileResult {
	res := FileResult{FileID: req.FileID}
	if err := ctx.Err(); err != nil {
		res.Err = &ExtractionError{Kind: Cancelled, FileID: req.FileID, Language: req.Language, Cause: err}
		o.metrics.recordFailure(ctx, req.Language, Cancelled)
		return res
	}

	lang, ok := o.resolve(req)
	if !ok {
		res.Err = o.unknownLanguage(req)
		o.metrics.recordFailure(ctx, req.Language, UnknownLanguage)
		o.log().Warn(ctx, "no language for file", logging.Fields{"file": req.FileID, "declared": req.Language})
		return res
	}

	// Revisions are assigned at submission so that the newest submission
	// wins in the store even if an older one finishes later.
	rev := o.revision.Add(1)

	batch, cached, xerr := o.runWithTimeout(lang, req, rev)
	if xerr != nil {
		res.Err = xerr
		o.metrics.recordFailure(ctx, lang.Name(), xerr.Kind)
		o.log().ErrorWithError(ctx, xerr.Cause, "extraction failed", logging.Fields{
			"file":            req.FileID,
			"kind":            string(xerr.Kind),
			"language":        xerr.Language,
			"grammar_version": xerr.GrammarVersion,
		})
		return res
	}

	res.Batch = batch
	o.metrics.recordSuccess(ctx, lang.Name(), len(batch.Symbols), cached,
		time.Duration(batch.ExtractionDurationMs)*time.Millisecond)
	o.log().Debug(ctx, "file extracted", logging.Fields{
		"file":        req.FileID,
		"language":    batch.Language,
		"symbols":     len(batch.Symbols),
		"diagnostics": len(batch.Diagnostics),
		"cached":      cached,
		"revision":    rev,
	})

	if o.store != nil {
		if err := o.store.Upsert(batch); err != nil {
			res.StoreErr = err
			o.log().Warn(ctx, "store rejected batch", logging.Fields{"file": req.FileID, "error": err.Error()})
		}
	}
	return res
}

// Scan extracts files on a bounded worker pool. Cancellation is checked
// before each file starts; files in flight run to completion and files not
// yet started are reported as Cancelled. Results are in input order.
func (o *Orchestrator) Scan(ctx context.Context, files []ports.SourceFile) *ScanReport {
	return o.ScanFunc(ctx, files, nil)
}

// ScanFunc is Scan with a callback invoked as each file finishes, from the
// worker that ran it.
func (o *Orchestrator) ScanFunc(ctx context.Context, files []ports.SourceFile, done func(FileResult)) *ScanReport {
	start := time.Now()
	report := &ScanReport{
		ScanID:  uuid.NewString(),
		Results: make([]FileResult, len(files)),
	}
	ctx = logging.WithScanID(ctx, report.ScanID)
	o.log().Info(ctx, "scan started", logging.Fields{"files": len(files), "workers": o.cfg.Workers})

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			report.Results[i] = o.ExtractFile(ctx, Request{
				FileID:   f.FileID,
				Content:  f.Content,
				Language: f.Language,
			})
			if done != nil {
				done(report.Results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	fields := logging.Fields{
		"files":       len(files),
		"succeeded":   report.Succeeded(),
		"symbols":     report.Symbols(),
		"duration_ms": report.Duration.Milliseconds(),
	}
	for kind, n := range report.Failures() {
		fields[strings.ToLower(string(kind))] = n
	}
	o.log().Info(ctx, "scan finished", fields)
	return report
}

// Forget drops a file from the document cache and the store.
func (o *Orchestrator) Forget(fileID string) error {
	o.docs.Evict(fileID)
	if o.store == nil {
		return nil
	}
	if err := o.store.Remove(fileID); err != nil {
		return fmt.Errorf("forget %s: %w", fileID, err)
	}
	return nil
}

// LanguageFor returns the language a file would be extracted with, or "".
func (o *Orchestrator) LanguageFor(fileID, declared string) string {
	if l, ok := o.resolve(Request{FileID: fileID, Language: declared}); ok {
		return l.Name()
	}
	return ""
}

// resolve picks the declared language when registered, otherwise infers one
// from the file name: first through the capability table, then through the
// extensions declared by registered languages (dynamic grammars may be
// missing from the table).
func (o *Orchestrator) resolve(req Request) (ports.LanguageSupport, bool) {
	if req.Language != "" {
		if l, ok := o.langs.Get(req.Language); ok {
			return l, true
		}
	}
	if o.caps != nil {
		if name := o.caps.LanguageForPath(req.FileID); name != "" {
			if l, ok := o.langs.Get(name); ok {
				return l, true
			}
		}
	}
	ext := strings.ToLower(extOf(req.FileID))
	if ext == "" {
		return nil, false
	}
	for _, name := range o.langs.Languages() {
		l, ok := o.langs.Get(name)
		if !ok {
			continue
		}
		for _, e := range l.Extensions() {
			if strings.EqualFold(e, ext) {
				return l, true
			}
		}
	}
	return nil, false
}

func extOf(fileID string) string {
	base := fileID
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i:]
	}
	return ""
}

func (o *Orchestrator) unknownLanguage(req Request) *ExtractionError {
	hint := "no grammar is registered for this file type"
	if req.Language != "" {
		hint = fmt.Sprintf("language %q is not registered; install its grammar or add it to the grammar paths", req.Language)
	}
	return &ExtractionError{
		Kind:     UnknownLanguage,
		FileID:   req.FileID,
		Language: req.Language,
		Hint:     hint,
		Cause:    fmt.Errorf("cannot resolve language for %s", req.FileID),
	}
}

type outcome struct {
	batch  *ports.SymbolBatch
	cached bool
	err    *ExtractionError
}

// runWithTimeout runs the file on its own goroutine. A file that exceeds the
// budget is reported as Timeout; its goroutine finishes in the background and
// its result is discarded.
func (o *Orchestrator) runWithTimeout(lang ports.LanguageSupport, req Request, rev uint64) (*ports.SymbolBatch, bool, *ExtractionError) {
	if o.cfg.FileTimeout <= 0 {
		out := o.run(lang, req, rev)
		return out.batch, out.cached, out.err
	}

	done := make(chan outcome, 1)
	go func() { done <- o.run(lang, req, rev) }()

	timer := time.NewTimer(o.cfg.FileTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.batch, out.cached, out.err
	case <-timer.C:
		return nil, false, o.fail(Timeout, lang, req,
			fmt.Errorf("%w after %s", context.DeadlineExceeded, o.cfg.FileTimeout))
	}
}

func (o *Orchestrator) run(lang ports.LanguageSupport, req Request, rev uint64) outcome {
	start := time.Now()

	h, err := o.parse(lang, req)
	if err != nil {
		return outcome{err: o.fail(GrammarFault, lang, req, err)}
	}
	defer h.Release()

	rec := newRecordingChecker(o.caps)
	ext, err := extract(lang, h.Tree(), rec)
	if err != nil {
		return outcome{err: o.fail(ExtractorFault, lang, req, err)}
	}

	symbols, dropped := validateSymbols(lang, req.FileID, ext.Symbols)
	diags := make([]ports.Diagnostic, 0, len(ext.Diagnostics)+len(dropped)+1)
	if o.caps != nil && !o.caps.Known(lang.Name(), lang.GrammarVersion()) {
		diags = append(diags, ports.Diagnostic{
			Construct: DiagGrammarVersion,
			Note: fmt.Sprintf("grammar %s@%s is not in the capability table; symbols are best-effort",
				lang.Name(), lang.GrammarVersion()),
		})
	}
	diags = append(diags, ext.Diagnostics...)
	diags = append(diags, rec.notes()...)
	diags = append(diags, dropped...)

	return outcome{
		cached: h.Cached,
		batch: &ports.SymbolBatch{
			FileID:               req.FileID,
			Language:             lang.Name(),
			GrammarVersion:       lang.GrammarVersion(),
			ContentHash:          h.ContentHash,
			Revision:             rev,
			Symbols:              symbols,
			HasParseErrors:       h.HasParseErrors,
			Diagnostics:          diags,
			ExtractionDurationMs: time.Since(start).Milliseconds(),
		},
	}
}

// parse goes through the document cache. Grammar panics become errors.
func (o *Orchestrator) parse(lang ports.LanguageSupport, req Request) (h *document.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, panicError{r}
		}
	}()
	if req.Edit != nil {
		return o.docs.ApplyEdit(req.FileID, lang, req.Content, *req.Edit)
	}
	return o.docs.GetOrReparse(req.FileID, lang, req.Content)
}

func extract(lang ports.LanguageSupport, tree ports.SyntaxTree, caps ports.CapabilityChecker) (ext ports.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext, err = ports.Extraction{}, panicError{r}
		}
	}()
	return lang.Extract(tree, caps)
}

func (o *Orchestrator) fail(kind ErrorKind, lang ports.LanguageSupport, req Request, cause error) *ExtractionError {
	e := &ExtractionError{
		Kind:           kind,
		FileID:         req.FileID,
		Language:       lang.Name(),
		GrammarVersion: lang.GrammarVersion(),
		Cause:          cause,
	}
	if o.caps != nil {
		e.Hint = strings.Join(o.caps.Hints(lang.Name(), lang.GrammarVersion()), "; ")
	}
	return e
}

// validateSymbols enforces the batch invariants: every symbol has a name, a
// well-formed span and a kind the language declares. Offenders are dropped
// and reported.
func validateSymbols(lang ports.LanguageSupport, fileID string, in []ports.Symbol) ([]ports.Symbol, []ports.Diagnostic) {
	declared := make(map[ports.SymbolKind]bool)
	for _, k := range lang.SupportedKinds() {
		declared[k] = true
	}
	out := make([]ports.Symbol, 0, len(in))
	var diags []ports.Diagnostic
	for _, s := range in {
		switch {
		case !declared[s.Kind]:
			diags = append(diags, ports.Diagnostic{
				Construct: DiagUndeclaredKind,
				Note:      fmt.Sprintf("%s %q dropped: %s does not declare kind %s", s.Kind, s.Name, lang.Name(), s.Kind),
				Line:      s.StartLine,
			})
			continue
		case s.Name == "" || !s.Location.Valid():
			diags = append(diags, ports.Diagnostic{
				Construct: DiagInvalidSymbol,
				Note:      fmt.Sprintf("%s %q dropped: empty name or malformed span", s.Kind, s.Name),
				Line:      s.StartLine,
			})
			continue
		}
		s.FileID = fileID
		out = append(out, s)
	}
	return out, diags
}

// recordingChecker passes capability questions through and remembers the
// partially supported constructs the extractor relied on, so their notes can
// be surfaced in the batch.
type recordingChecker struct {
	inner ports.CapabilityChecker

	mu      sync.Mutex
	partial map[string]string
}

func newRecordingChecker(inner ports.CapabilityChecker) *recordingChecker {
	return &recordingChecker{inner: inner, partial: make(map[string]string)}
}

func (r *recordingChecker) Supports(language, grammarVersion, construct string) ports.Support {
	if r.inner == nil {
		return ports.Support{Status: ports.Unknown}
	}
	s := r.inner.Supports(language, grammarVersion, construct)
	if s.Status == ports.PartiallySupported && construct != ports.ConstructFieldAccess {
		r.mu.Lock()
		r.partial[construct] = s.Note
		r.mu.Unlock()
	}
	return s
}

func (r *recordingChecker) notes() []ports.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.Diagnostic, 0, len(r.partial))
	for c, note := range r.partial {
		out = append(out, ports.Diagnostic{Construct: c, Note: note})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Construct < out[j].Construct })
	return out
}
