// Package refactor is the extraction engine: it moves a selection of Rust
// code into a new module file, registers the module with its parent,
// removes the original text and validates the result against the
// compiler oracle.
package refactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gnana997/cratesplit/catalogs"
	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/bridge"
	"github.com/gnana997/cratesplit/pkg/catalog"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/resolver"
	"github.com/gnana997/cratesplit/pkg/validator"
	"github.com/gnana997/cratesplit/pkg/workspace"
)

// DefaultMaxAttempts bounds validation passes.
const DefaultMaxAttempts = 3

// DefaultSettleDelay is how long the engine waits before trusting the
// oracle's diagnostics.
const DefaultSettleDelay = 500 * time.Millisecond

// Options configures an Engine. Zero values pick defaults.
type Options struct {
	Analyzer *analysis.Analyzer
	Resolver *resolver.Resolver
	// Oracle defaults to validator.NoopProvider.
	Oracle validator.DiagnosticsProvider
	// Bridge is optional; a nil or disabled client leaves the catalog as
	// the only fallback for unresolved names.
	Bridge *bridge.Client
	// Catalog defaults to the embedded std catalog.
	Catalog *catalog.QueryService

	IncludeHeader        bool
	CleanupUnusedImports bool
	RollbackOnAbort      bool
	MaxAttempts          int
	SettleDelay          time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns the options the CLI starts from.
func DefaultOptions() Options {
	return Options{
		IncludeHeader:        true,
		CleanupUnusedImports: true,
		MaxAttempts:          DefaultMaxAttempts,
		SettleDelay:          DefaultSettleDelay,
	}
}

// Engine runs extractions.
//
// **Thread Safety:** safe for concurrent use. Requests on the same source
// file run one at a time.
type Engine struct {
	opts      Options
	analyzer  *analysis.Analyzer
	resolver  *resolver.Resolver
	oracle    validator.DiagnosticsProvider
	suggester *suggester
	locks     *fileLocks
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewAnalyzer(analysis.Options{Logger: opts.Logger})
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(opts.Logger)
	}
	if opts.Oracle == nil {
		opts.Oracle = validator.NoopProvider{}
	}
	if opts.Catalog == nil {
		q, err := catalog.LoadAndQueryBytes(catalogs.StdJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded catalog: %w", err)
		}
		opts.Catalog = q
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	return &Engine{
		opts:      opts,
		analyzer:  opts.Analyzer,
		resolver:  opts.Resolver,
		oracle:    opts.Oracle,
		suggester: &suggester{bridge: opts.Bridge, catalog: opts.Catalog},
		locks:     newFileLocks(),
		logger:    opts.Logger,
		sleep:     sleepCtx,
	}, nil
}

// Analyzer returns the engine's analyzer.
func (e *Engine) Analyzer() *analysis.Analyzer {
	return e.analyzer
}

// Request is one extraction.
type Request struct {
	// File is the source file.
	File string
	// Selection is the range to extract.
	Selection document.Range
	// ModuleName names the new module and its file.
	ModuleName string
	// TargetDir is where the module file goes. Defaults to the source
	// file's directory.
	TargetDir string
	// Document is the request snapshot. When nil the file is read from disk.
	Document *document.Document
	// ConvertParent moves TargetDir's file module X.rs to X/mod.rs before
	// writing.
	ConvertParent bool
	// DryRun stops after content generation without touching any file.
	DryRun bool
}

// Result is the outcome of an extraction.
type Result struct {
	ID          string           `json:"id"`
	State       State            `json:"state"`
	Transitions []State          `json:"transitions"`
	Analysis    analysis.Summary `json:"analysis"`
	Cached      bool             `json:"cached"`

	ModuleFile       string                `json:"module_file"`
	Content          string                `json:"content"`
	Imports          []string              `json:"imports"`
	DroppedImports   int                   `json:"dropped_imports"`
	RegistrationFile string                `json:"registration_file,omitempty"`
	Registered       bool                  `json:"registered"`
	ReExports        []string              `json:"re_exports,omitempty"`
	Converted        *workspace.Conversion `json:"converted,omitempty"`

	Attempts       int                    `json:"attempts"`
	FixesApplied   []string               `json:"fixes_applied,omitempty"`
	Validated      bool                   `json:"validated"`
	Diagnostics    []validator.Diagnostic `json:"diagnostics,omitempty"`
	RemovedImports int                    `json:"removed_imports,omitempty"`

	Changes    []Change `json:"changes,omitempty"`
	RolledBack bool     `json:"rolled_back,omitempty"`

	// Journal undoes the request's mutations. It is nil for dry runs.
	Journal *Journal `json:"-"`
}

func (r *Result) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// run carries one request through the state machine.
type run struct {
	e       *Engine
	req     Request
	res     *Result
	journal *Journal
	logger  *slog.Logger

	file     string
	project  *workspace.Project
	snapshot *document.Document
	analysis *analysis.Result
	// shift records a registration inserted into the source file itself.
	shift shift
}

type shift struct {
	at, delta int
}

// Extract runs the full state machine for req. A validation abort returns
// both the Result (State == StateAborted) and a KindValidation *Error.
func (e *Engine) Extract(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	res := &Result{ID: id}
	r := &run{e: e, req: req, res: res, logger: e.logger.With("request_id", id)}

	if !workspace.ValidModuleName(req.ModuleName) {
		return nil, newError(KindInput, StateAnalyzing, ErrInvalidModuleName, "%q is not a valid module name", req.ModuleName)
	}
	file, err := filepath.Abs(req.File)
	if err != nil {
		return nil, newError(KindInput, StateAnalyzing, err, "bad source path %q", req.File)
	}
	r.file = file

	release, err := e.locks.acquire(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	defer release()

	if err := r.analyze(ctx); err != nil {
		return nil, err
	}
	if err := r.generate(); err != nil {
		return nil, err
	}
	if req.DryRun {
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	r.journal = NewJournal(id)
	res.Journal = r.journal

	err = r.mutate(ctx)
	if !res.RolledBack {
		res.Changes = r.journal.Changes()
	}
	return res, err
}

func (r *run) mutate(ctx context.Context) error {
	if err := r.writeFile(); err != nil {
		return err
	}
	if err := r.updateParent(); err != nil {
		return err
	}
	if err := r.removeOriginal(); err != nil {
		return err
	}
	return r.validate(ctx)
}

func (r *run) transition(s State) {
	r.res.enter(s)
	r.logger.Debug("extraction state", "state", s)
}

// analyze is the Analyzing state.
func (r *run) analyze(ctx context.Context) error {
	r.transition(StateAnalyzing)

	project, err := workspace.Open(r.file, r.logger)
	if err != nil {
		return newError(KindEnvironment, StateAnalyzing, err, "cannot open project for %s", r.file)
	}
	r.project = project

	doc := r.req.Document
	if doc == nil {
		data, err := os.ReadFile(r.file)
		if err != nil {
			return newError(KindEnvironment, StateAnalyzing, err, "cannot read %s", r.file)
		}
		doc = document.New(r.file, string(data))
	}
	r.snapshot = doc

	result, cached, err := r.e.analyzer.Analyze(ctx, doc, r.req.Selection)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrSelectionOutOfBounds):
		return newError(KindInput, StateAnalyzing, err, "unusable selection %s", r.req.Selection)
	case err != nil:
		return newError(KindEnvironment, StateAnalyzing, err, "analysis failed")
	}
	r.analysis = result
	r.res.Cached = cached
	r.res.Analysis = result.Summarize()
	return nil
}

// generate is the ContentGenerated state.
func (r *run) generate() error {
	a := r.analysis

	ns, err := r.project.NamespacePath(r.file)
	if err != nil {
		r.logger.Warn("source file is outside the source root, relative imports pass through",
			"file", r.file, "error", err)
		ns = nil
	}
	resolved := r.e.resolver.Resolve(a.Imports, a.Text, resolver.Options{
		NamespacePath:  ns,
		ExternalCrates: r.project.ExternalCrates(),
		LocalModules:   a.LocalModules,
		SourceDeclared: a.SourceDeclared,
		SpanDeclared:   a.DeclaredNames(),
		Enclosing:      a.Enclosing,
	})

	r.res.Imports = resolved.Lines()
	r.res.DroppedImports = len(resolved.Dropped)
	r.res.Content = GenerateContent(r.req.ModuleName, a, r.res.Imports, r.e.opts.IncludeHeader)

	dir := r.req.TargetDir
	if dir == "" {
		dir = filepath.Dir(r.file)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return newError(KindInput, StateContentGenerated, err, "bad target directory %q", r.req.TargetDir)
	}
	r.res.ModuleFile = filepath.Join(dir, r.req.ModuleName+".rs")

	r.transition(StateContentGenerated)
	return nil
}

// writeFile is the FileWritten state.
func (r *run) writeFile() error {
	target := r.res.ModuleFile
	dir := filepath.Dir(target)

	if fileExists(target) || fileExists(filepath.Join(dir, r.req.ModuleName, "mod.rs")) {
		return newError(KindInput, StateFileWritten, ErrModuleExists, "module %s already exists", r.req.ModuleName)
	}

	if r.req.ConvertParent {
		if _, ok := workspace.CheckModuleConversion(dir); ok {
			fresh, err := mkdirAll(dir)
			for _, d := range fresh {
				r.journal.madeDir(d)
			}
			if err != nil {
				return newError(KindEnvironment, StateFileWritten, err, "cannot create %s", dir)
			}
			conv, err := workspace.ConvertModuleToFolder(dir)
			if err != nil {
				return newError(KindEnvironment, StateFileWritten, err, "cannot convert parent module")
			}
			r.journal.moved(conv.File, conv.Target)
			r.res.Converted = &conv
			if samePath(conv.File, r.file) {
				// The source itself moved; later stages edit it at its new path.
				r.file = conv.Target
			}
			r.logger.Info("converted parent module to a folder", "from", conv.File, "to", conv.Target)
		}
	}

	created, err := mkdirAll(dir)
	for _, d := range created {
		r.journal.madeDir(d)
	}
	if err != nil {
		return newError(KindEnvironment, StateFileWritten, err, "cannot create %s", dir)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return newError(KindEnvironment, StateFileWritten, err, "cannot create %s", target)
	}
	r.journal.created(target)
	if _, err := f.WriteString(r.res.Content); err != nil {
		f.Close()
		return newError(KindEnvironment, StateFileWritten, err, "cannot write %s", target)
	}
	if err := f.Close(); err != nil {
		return newError(KindEnvironment, StateFileWritten, err, "cannot write %s", target)
	}

	r.transition(StateFileWritten)
	r.logger.Info("module file written", "file", target, "imports", len(r.res.Imports))
	return nil
}

// updateParent is the ParentUpdated state.
func (r *run) updateParent() error {
	reg, err := r.project.FindRegistration(filepath.Dir(r.res.ModuleFile))
	if err != nil {
		return newError(KindEnvironment, StateParentUpdated, err, "no file can register module %s", r.req.ModuleName)
	}
	r.res.RegistrationFile = reg.File

	decl := workspace.ModuleDecl{Name: r.req.ModuleName, Path: reg.PathAttr(r.res.ModuleFile)}
	if !r.analysis.InsideImpl {
		decl.ReExports = r.analysis.PublicNames()
	}

	prev, mode, err := readFile(reg.File)
	if err != nil {
		return newError(KindEnvironment, StateParentUpdated, err, "cannot read %s", reg.File)
	}
	updated, at, changed := workspace.RegisterAt(string(prev), decl)
	if changed {
		r.journal.modified(reg.File, prev, mode)
		if err := os.WriteFile(reg.File, []byte(updated), mode); err != nil {
			return newError(KindEnvironment, StateParentUpdated, err, "cannot write %s", reg.File)
		}
		r.res.Registered = true
		r.res.ReExports = decl.ReExports
		if samePath(reg.File, r.file) {
			r.shift = shift{at: at, delta: len(updated) - len(prev)}
		}
	}

	r.transition(StateParentUpdated)
	r.logger.Info("module registered", "file", reg.File, "inserted", changed)
	return nil
}

// removeOriginal is the OriginalRemoved state. It deletes the extracted
// range, not the raw selection: the whole lines of the expanded span (or of
// the selection when nothing expanded), so that no partial declaration is
// left behind. That is exactly the text written into the new module. The
// deleted lines come from the request snapshot and must still hold the same
// text on disk.
func (r *run) removeOriginal() error {
	a := r.analysis
	span := r.snapshot.WholeLines(a.StartLine, a.EndLine)
	start, err := r.snapshot.OffsetAt(span.Start)
	if err != nil {
		return newError(KindEnvironment, StateOriginalRemoved, err, "extracted range is outside the snapshot")
	}
	end, err := r.snapshot.OffsetAt(span.End)
	if err != nil {
		return newError(KindEnvironment, StateOriginalRemoved, err, "extracted range is outside the snapshot")
	}
	want := r.snapshot.Text[start:end]

	if r.shift.delta != 0 && r.shift.at <= start {
		start += r.shift.delta
		end += r.shift.delta
	}

	current, mode, err := readFile(r.file)
	if err != nil {
		return newError(KindEnvironment, StateOriginalRemoved, err, "cannot read %s", r.file)
	}
	text := string(current)
	if end > len(text) || text[start:end] != want {
		e := newError(KindEnvironment, StateOriginalRemoved, ErrSourceChanged,
			"lines %d-%d no longer hold the extracted text", a.StartLine+1, a.EndLine+1)
		e.File, e.Line, e.Column = r.file, a.StartLine+1, 1
		return e
	}

	r.journal.modified(r.file, current, mode)
	if err := os.WriteFile(r.file, []byte(text[:start]+text[end:]), mode); err != nil {
		return newError(KindEnvironment, StateOriginalRemoved, err, "cannot write %s", r.file)
	}

	r.transition(StateOriginalRemoved)
	r.logger.Info("original text removed", "file", r.file, "lines", fmt.Sprintf("%d-%d", a.StartLine+1, a.EndLine+1))
	return nil
}

// Analyze runs only the Analyzing stage: it reads file and analyzes sel
// without changing anything. The boolean reports a cache hit.
func (e *Engine) Analyze(ctx context.Context, file string, sel document.Range) (*analysis.Result, bool, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, false, newError(KindInput, StateAnalyzing, err, "bad source path %q", file)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, false, newError(KindEnvironment, StateAnalyzing, err, "cannot read %s", abs)
	}
	res, cached, err := e.analyzer.Analyze(ctx, document.New(abs, string(data)), sel)
	switch {
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrSelectionOutOfBounds):
		return nil, false, newError(KindInput, StateAnalyzing, err, "unusable selection %s", sel)
	case err != nil:
		return nil, false, err
	}
	return res, cached, nil
}
