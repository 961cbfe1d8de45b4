package refactor

import (
	"context"
	"os"
	"strings"

	"github.com/gnana997/cratesplit/pkg/bridge"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/validator"
)

// validate is the Validating/RetryFix loop followed by Done or Aborted.
// Every pass counts as an attempt, fixed or not.
func (r *run) validate(ctx context.Context) error {
	file := r.res.ModuleFile
	var diags []validator.Diagnostic

	for {
		r.transition(StateValidating)
		r.res.Attempts++

		if err := r.e.sleep(ctx, r.e.opts.SettleDelay); err != nil {
			r.logger.Warn("validation interrupted, module left unvalidated", "file", file, "error", err)
			r.transition(StateDone)
			return nil
		}

		var err error
		diags, err = r.e.oracle.Check(ctx, file)
		if err != nil {
			r.logger.Warn("diagnostics oracle unavailable, module left unvalidated", "file", file, "error", err)
			r.transition(StateDone)
			return nil
		}

		errs := validator.Errors(diags)
		if len(errs) == 0 {
			r.res.Validated = true
			r.res.Diagnostics = diags
			break
		}
		r.res.Diagnostics = errs
		r.logger.Info("module has errors", "file", file, "errors", len(errs), "attempt", r.res.Attempts)

		if r.res.Attempts >= r.e.opts.MaxAttempts {
			return r.abort(errs)
		}

		r.transition(StateRetryFix)
		applied := r.applyFixes(ctx, file, errs)
		r.res.FixesApplied = append(r.res.FixesApplied, applied...)
	}

	r.transition(StateDone)
	if r.e.opts.CleanupUnusedImports {
		r.res.RemovedImports = r.cleanup(ctx, file, diags)
	}
	return nil
}

// abort ends the request with the outstanding errors.
func (r *run) abort(errs []validator.Diagnostic) error {
	r.transition(StateAborted)

	first := errs[0]
	e := newError(KindValidation, StateValidating, nil,
		"module still has %d error(s) after %d attempt(s): %s", len(errs), r.res.Attempts, first.Message)
	e.File = r.res.ModuleFile
	e.Line = first.Range.Start.Line + 1
	e.Column = first.Range.Start.Column + 1

	if r.e.opts.RollbackOnAbort {
		r.res.Changes = r.journal.Changes()
		if err := r.journal.Rollback(); err != nil {
			r.logger.Error("rollback failed", "error", err)
			e.Cause = err
		} else {
			r.res.RolledBack = true
			r.logger.Info("extraction rolled back", "file", r.file)
		}
	}
	return e
}

// applyFixes applies one fix per error: the first applicable oracle fix,
// else an import for the unresolved name it reports. It returns the
// descriptions of what was applied.
func (r *run) applyFixes(ctx context.Context, file string, errs []validator.Diagnostic) []string {
	data, err := os.ReadFile(file)
	if err != nil {
		r.logger.Warn("cannot read module for fixing", "file", file, "error", err)
		return nil
	}
	text := string(data)

	var (
		edits   []document.TextEdit
		seen    = make(map[document.TextEdit]bool)
		applied []string
		imports []string
		report  *bridge.Report
		queried bool
	)

	for _, d := range errs {
		fixes, err := r.e.oracle.QuickFixes(ctx, file, d.Range)
		if err != nil {
			r.logger.Debug("quick fixes unavailable", "error", err)
		}
		if fix, ok := firstApplicable(fixes); ok {
			fresh := false
			for _, ed := range fix.Edits {
				if !seen[ed] {
					seen[ed] = true
					edits = append(edits, ed)
					fresh = true
				}
			}
			if fresh {
				applied = append(applied, fix.Description)
			}
			continue
		}

		name, ok := validator.UnresolvedName(d)
		if !ok {
			continue
		}
		if !queried {
			report = r.e.suggester.report(ctx, r.project.Root, file)
			queried = true
		}
		if s, ok := r.e.suggester.best(report, name); ok {
			imports = append(imports, s.Path)
		}
	}

	fixed, err := document.ApplyEdits(text, edits)
	if err != nil {
		r.logger.Warn("quick fixes conflict, skipping them", "error", err)
		fixed = text
		applied = nil
	}
	for _, path := range imports {
		var ok bool
		if fixed, ok = insertImport(fixed, path); ok {
			applied = append(applied, "import "+path)
		}
	}

	if fixed == text {
		return nil
	}
	if err := os.WriteFile(file, []byte(fixed), 0o644); err != nil {
		r.logger.Warn("cannot write fixed module", "file", file, "error", err)
		return nil
	}
	r.logger.Info("applied fixes", "file", file, "fixes", strings.Join(applied, "; "))
	return applied
}

// cleanup removes the imports the oracle reports as unused. It is best
// effort and returns the number of removal fixes applied.
func (r *run) cleanup(ctx context.Context, file string, diags []validator.Diagnostic) int {
	var edits []document.TextEdit
	seen := make(map[document.TextEdit]bool)
	removed := 0
	for _, d := range diags {
		if !validator.IsUnusedImport(d) {
			continue
		}
		fixes, err := r.e.oracle.QuickFixes(ctx, file, d.Range)
		if err != nil {
			continue
		}
		for _, fix := range fixes {
			if !validator.IsRemovalFix(fix.Description) {
				continue
			}
			for _, ed := range fix.Edits {
				if !seen[ed] {
					seen[ed] = true
					edits = append(edits, ed)
				}
			}
			removed++
			break
		}
	}
	if len(edits) == 0 {
		return 0
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return 0
	}
	cleaned, err := document.ApplyEdits(string(data), edits)
	if err != nil {
		r.logger.Warn("unused import cleanup skipped", "file", file, "error", err)
		return 0
	}
	if err := os.WriteFile(file, []byte(cleaned), 0o644); err != nil {
		r.logger.Warn("unused import cleanup failed", "file", file, "error", err)
		return 0
	}
	r.logger.Info("removed unused imports", "file", file, "count", removed)
	return removed
}

func firstApplicable(fixes []validator.Fix) (validator.Fix, bool) {
	for _, f := range fixes {
		if validator.IsApplicableFix(f.Description) && len(f.Edits) > 0 {
			return f, true
		}
	}
	return validator.Fix{}, false
}
