// Package dispatch hands jobs to the external AI workflow webhook. The
// outbound call is fire-and-forget: a 2xx response means only "accepted for
// async processing" — the result arrives later through one of the
// completion channels.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// InputReader loads staged binary inputs by storage key.
type InputReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Options configures the webhook client.
type Options struct {
	WebhookURL  string
	CallbackURL string
	HTTPClient  *http.Client
	Inputs      InputReader
	Logger      zerolog.Logger
}

// Client performs a single outbound HTTP call per job. It never retries:
// a user-initiated regenerate creates a new job instead.
type Client struct {
	webhookURL  string
	callbackURL string
	httpClient  *http.Client
	inputs      InputReader
	logger      zerolog.Logger
}

// NewClient validates the options and builds a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.WebhookURL) == "" {
		return nil, fmt.Errorf("dispatch: webhook url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		webhookURL:  opts.WebhookURL,
		callbackURL: opts.CallbackURL,
		httpClient:  httpClient,
		inputs:      opts.Inputs,
		logger:      opts.Logger,
	}, nil
}

// Dispatch serializes the job into the wire format the provider expects and
// posts it. A non-2xx response or transport failure surfaces as
// domain.ErrDispatchRejected; the response body is otherwise ignored.
func (c *Client) Dispatch(ctx context.Context, job *domain.Job) error {
	var (
		req *http.Request
		err error
	)
	switch job.Kind {
	case domain.JobKindTransformation:
		req, err = c.transformationRequest(ctx, job)
	case domain.JobKindDescription:
		req, err = c.descriptionRequest(ctx, job)
	default:
		return fmt.Errorf("dispatch: unsupported job kind %q", job.Kind)
	}
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchRejected, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: provider returned %d", domain.ErrDispatchRejected, resp.StatusCode)
	}
	c.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("dispatch: accepted for async processing")
	return nil
}

func (c *Client) transformationRequest(ctx context.Context, job *domain.Job) (*http.Request, error) {
	input := job.Input.Transformation
	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	if c.inputs == nil {
		return nil, fmt.Errorf("dispatch: no input reader configured")
	}
	image, err := c.inputs.Read(ctx, job.InputRef)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load staged input: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", job.ID+".png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"transformationId": job.ID,
		"style":            input.Style,
		"prompt":           input.Prompt,
		"callbackUrl":      c.callbackURL,
	}
	if len(input.Annotations) > 0 {
		fields["annotations"] = string(input.Annotations)
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *Client) descriptionRequest(ctx context.Context, job *domain.Job) (*http.Request, error) {
	input := job.Input.Description
	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	payload, err := json.Marshal(map[string]any{
		"descriptionId": job.ID,
		"propertyData":  input.PropertyData,
		"tone":          input.Tone,
		"language":      input.Language,
		"callbackUrl":   c.callbackURL,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
