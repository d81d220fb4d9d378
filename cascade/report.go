package cascade

import (
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// ErrIncomplete is returned when at least one cascade step failed for a
// reason other than the artifact already being absent.
var ErrIncomplete = errors.New("cascade deletion incomplete")

// Outcome is the result of one cascade step.
type Outcome string

const (
	StepDeleted Outcome = "deleted"
	StepSkipped Outcome = "skipped"
	StepFailed  Outcome = "failed"
)

// Artifact labels used in steps.
const (
	ArtifactUpload        = "upload"
	ArtifactCanonicalText = "canonical-text"
	ArtifactMarker        = "marker"
	ArtifactEmbedding     = "embedding"
	ArtifactIndexEntry    = "index-entry"
)

// Step records what happened to one artifact during a deletion.
type Step struct {
	Artifact string
	ID       string
	Outcome  Outcome
	Err      error
}

// Report lists every step of one deletion in the order they ran.
type Report struct {
	Kind      core.ArtifactKind
	Namespace core.Namespace
	Target    string
	Steps     []Step
}

// Deleted returns the IDs of the artifacts that were removed.
func (r *Report) Deleted() []string {
	var ids []string
	for _, s := range r.Steps {
		if s.Outcome == StepDeleted {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Failed returns the steps that did not complete.
func (r *Report) Failed() []Step {
	var failed []Step
	for _, s := range r.Steps {
		if s.Outcome == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Err returns nil when every step either deleted its artifact or found it
// absent, and an error wrapping ErrIncomplete otherwise.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, s := range failed {
		errs[i] = fmt.Errorf("%s %s: %w", s.Artifact, s.ID, s.Err)
	}
	return fmt.Errorf("%w: %w", ErrIncomplete, errors.Join(errs...))
}
