package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/application"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON failure response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Success: false, Message: message})
}

// statusResponse is the generic success/failure envelope.
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Vault   string `json:"vault,omitempty"`
}

// deliverResponse is the JSON result of a single-note delivery request.
type deliverResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Vault      string `json:"vault"`
	Period     string `json:"period"`
	StatusCode int    `json:"statusCode"`
}

// flushResponse is the JSON result of a flush request. Errors is null when
// every note was delivered.
type flushResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Vault        string               `json:"vault"`
	TotalNotes   int                  `json:"totalNotes"`
	SuccessCount int                  `json:"successCount"`
	FailureCount int                  `json:"failureCount"`
	Errors       []flushErrorResponse `json:"errors"`
}

// flushErrorResponse attributes one flush failure to its queued note.
type flushErrorResponse struct {
	NoteID int64  `json:"noteId"`
	Error  string `json:"error"`
}

// healthResponse is the JSON representation of the health check endpoint.
type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// vaultListResponse lists configured vault names.
type vaultListResponse struct {
	Vaults []string `json:"vaults"`
}

// putVaultRequest is the JSON body for the vault credential endpoint.
type putVaultRequest struct {
	APIKey string `json:"api_key"`
}

// queueListResponse lists a vault's pending notes, oldest first.
type queueListResponse struct {
	Vault   string              `json:"vault"`
	Pending []queueItemResponse `json:"pending"`
}

// queueItemResponse is queue metadata for one pending note. The note body is
// not included; use the preview endpoint to inspect content.
type queueItemResponse struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	SizeBytes int    `json:"size_bytes"`
}

// toFlushResponse converts an application FlushReport to its JSON representation.
func toFlushResponse(report *application.FlushReport) flushResponse {
	resp := flushResponse{
		Success:      report.Success(),
		Vault:        report.Vault,
		TotalNotes:   report.TotalNotes,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
	}

	switch {
	case report.TotalNotes == 0:
		resp.Message = "queue is empty"
	case report.Success():
		resp.Message = "all queued notes delivered"
	default:
		resp.Message = "flush completed with failures"
	}

	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, flushErrorResponse{NoteID: e.NoteID, Error: e.Detail})
	}

	return resp
}
