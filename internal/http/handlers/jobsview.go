package handlers

import (
	"encoding/json"
	"time"

	"propstage/internal/domain"
)

// jobView is the JSON shape for a job across all endpoints. Kind-specific
// input fields are flattened; raw binary inputs never appear (the job only
// holds a staging reference, which stays server-side).
type jobView struct {
	ID          string     `json:"id"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Style       string          `json:"style,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`

	PropertyData map[string]string `json:"property_data,omitempty"`
	Tone         string            `json:"tone,omitempty"`
	Language     string            `json:"language,omitempty"`
}

func viewJob(job *domain.Job) jobView {
	v := jobView{
		ID:          job.ID,
		ProjectID:   job.ProjectID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Result:      job.ResultPayload,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if t := job.Input.Transformation; t != nil {
		v.Style = t.Style
		v.Prompt = t.Prompt
		v.Annotations = t.Annotations
	}
	if d := job.Input.Description; d != nil {
		v.PropertyData = d.PropertyData
		v.Tone = d.Tone
		v.Language = d.Language
	}
	return v
}

func viewJobs(list []domain.Job) []jobView {
	out := make([]jobView, 0, len(list))
	for i := range list {
		out = append(out, viewJob(&list[i]))
	}
	return out
}
