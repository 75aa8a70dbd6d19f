// Package obsidian implements the NoteDeliverer port against the Obsidian
// Local REST API.
package obsidian

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NoteDeliverer = (*Client)(nil)

// maxErrorBodyBytes caps how much of a rejection body is captured for
// reporting. Downstream error payloads are small; anything larger is noise.
const maxErrorBodyBytes = 4 << 10

// Client delivers notes to the Obsidian Local REST API. Appending to a
// periodic note is a single POST to {base}/periodic/{period}/ with a bearer
// credential and a text/markdown body; any 2xx status is acceptance.
//
// The client never retries. A failed attempt is classified and returned so
// the caller can decide whether the note stays queued for a later flush.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a delivery client for the given API base URL with the
// given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Deliver forwards one note to the vault's periodic endpoint and classifies
// the result. It never returns a Go error: transport problems are an outcome,
// not an exception, because the caller accounts for them per note.
func (c *Client) Deliver(ctx context.Context, apiKey string, period model.Period, note string) model.DeliveryOutcome {
	url := c.baseURL + "/periodic/" + period.String() + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(note))
	if err != nil {
		return model.DeliveryOutcome{
			Status: model.DeliveryTransportFailure,
			Reason: "build request: " + err.Error(),
		}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "text/markdown")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.DeliveryOutcome{
			Status: model.DeliveryTransportFailure,
			Reason: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Acceptance is defined by the status class alone; the response body
		// carries no acknowledgement worth parsing.
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.DeliveryOutcome{
			Status:     model.DeliveryDelivered,
			StatusCode: resp.StatusCode,
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return model.DeliveryOutcome{
		Status:     model.DeliveryRejected,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
