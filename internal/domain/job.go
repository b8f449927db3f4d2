package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// JobKind enumerates the supported AI job categories.
type JobKind string

const (
	JobKindTransformation JobKind = "transformation"
	JobKindDescription    JobKind = "description"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// step of the job state machine. Pending may go terminal directly: a
// synchronous dispatch rejection fails it, and a completion signal can beat
// the processing update when the provider answers faster than the store.
// Terminal states admit nothing; the terminal check is the only dedup guard
// the delivery channels rely on.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next.Terminal()
	case JobStatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// TransformationInput carries the staging parameters for a virtual staging
// request. The source image itself is staged out-of-band at submission and
// referenced by Job.InputRef; it is never retained here.
type TransformationInput struct {
	Style       string          `json:"style"`
	Prompt      string          `json:"prompt,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
}

// DescriptionInput carries the parameters for a property description request.
type DescriptionInput struct {
	PropertyData map[string]string `json:"property_data"`
	Tone         string            `json:"tone"`
	Language     string            `json:"language"`
}

// JobInput is the kind-tagged union of job inputs. Exactly one branch must
// be populated, matching the job's Kind.
type JobInput struct {
	Transformation *TransformationInput `json:"transformation,omitempty"`
	Description    *DescriptionInput    `json:"description,omitempty"`
}

// Validate checks that the input populates exactly the branch the kind
// demands and that the branch carries its required fields.
func (in JobInput) Validate(kind JobKind) error {
	switch kind {
	case JobKindTransformation:
		if in.Transformation == nil || in.Description != nil {
			return ErrInvalidInput
		}
		if strings.TrimSpace(in.Transformation.Style) == "" {
			return ErrInvalidInput
		}
	case JobKindDescription:
		if in.Description == nil || in.Transformation != nil {
			return ErrInvalidInput
		}
		if len(in.Description.PropertyData) == 0 || strings.TrimSpace(in.Description.Tone) == "" {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

// Job tracks one unit of asynchronous AI work through
// pending → processing → completed|failed.
type Job struct {
	ID            string
	UserID        string
	ProjectID     *string
	Kind          JobKind
	Status        JobStatus
	Input         JobInput
	InputRef      string // storage key of the staged source image, transformations only
	ResultPayload string // set iff Status == completed
	ErrorMessage  string // set iff Status == failed
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}
