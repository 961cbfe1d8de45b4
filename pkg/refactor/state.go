package refactor

// State is a stage of the extraction state machine.
type State string

const (
	StateAnalyzing        State = "analyzing"
	StateContentGenerated State = "content_generated"
	StateFileWritten      State = "file_written"
	StateParentUpdated    State = "parent_updated"
	StateOriginalRemoved  State = "original_removed"
	StateValidating       State = "validating"
	StateRetryFix         State = "retry_fix"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Mutated reports whether reaching s implies files were changed.
func (s State) Mutated() bool {
	switch s {
	case StateAnalyzing, StateContentGenerated, "":
		return false
	}
	return true
}
