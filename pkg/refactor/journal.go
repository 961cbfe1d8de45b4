package refactor

import (
	"errors"
	"fmt"
	"os"
)

// Op is a journaled file operation.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpMkdir  Op = "mkdir"
	OpMove   Op = "move"
)

// Change is one recorded mutation.
type Change struct {
	Op   Op     `json:"op"`
	Path string `json:"path"`
	// From is the original path of a move.
	From string `json:"from,omitempty"`
	// Previous is the content before a modify.
	Previous []byte      `json:"-"`
	Mode     os.FileMode `json:"-"`
}

// Journal records the mutations of one extraction so they can be undone.
// A Journal is used by one request at a time.
type Journal struct {
	ID      string   `json:"id"`
	changes []Change // oldest first
}

// NewJournal creates an empty journal.
func NewJournal(id string) *Journal {
	return &Journal{ID: id}
}

func (j *Journal) created(path string) {
	j.changes = append(j.changes, Change{Op: OpCreate, Path: path})
}

func (j *Journal) madeDir(path string) {
	j.changes = append(j.changes, Change{Op: OpMkdir, Path: path})
}

func (j *Journal) moved(from, to string) {
	j.changes = append(j.changes, Change{Op: OpMove, Path: to, From: from})
}

func (j *Journal) modified(path string, previous []byte, mode os.FileMode) {
	j.changes = append(j.changes, Change{Op: OpModify, Path: path, Previous: previous, Mode: mode})
}

// Changes returns the recorded mutations, oldest first.
func (j *Journal) Changes() []Change {
	out := make([]Change, len(j.changes))
	copy(out, j.changes)
	return out
}

// Empty reports whether nothing was recorded.
func (j *Journal) Empty() bool {
	return len(j.changes) == 0
}

// Rollback undoes every recorded change, newest first, and clears the
// journal. It keeps going past failures and returns them joined.
func (j *Journal) Rollback() error {
	var errs []error
	for i := len(j.changes) - 1; i >= 0; i-- {
		c := j.changes[i]
		var err error
		switch c.Op {
		case OpCreate:
			err = os.Remove(c.Path)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		case OpModify:
			mode := c.Mode
			if mode == 0 {
				mode = 0o644
			}
			err = os.WriteFile(c.Path, c.Previous, mode)
		case OpMkdir:
			// A directory someone else filled is left alone.
			if entries, _ := os.ReadDir(c.Path); len(entries) > 0 {
				continue
			}
			err = os.Remove(c.Path)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		case OpMove:
			err = os.Rename(c.Path, c.From)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("undo %s %s: %w", c.Op, c.Path, err))
		}
	}
	j.changes = nil
	return errors.Join(errs...)
}
