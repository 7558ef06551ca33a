package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/konsulhq/konsul/pkg/models"
)

// RuntimeForwarder advertises runtime status to the HTTP server's cache.
// The agent process cannot reach the server's in-memory cache directly, so
// it forwards over the API.
type RuntimeForwarder struct {
	baseURL string
	client  *http.Client
}

// NewRuntimeForwarder creates a forwarder for a server base URL like
// "http://127.0.0.1:8080".
func NewRuntimeForwarder(baseURL string) *RuntimeForwarder {
	return &RuntimeForwarder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Set implements the orchestrator's RuntimeSetter over HTTP.
func (f *RuntimeForwarder) Set(sessionID string, status models.RuntimeStatus) error {
	body, err := json.Marshal(map[string]models.RuntimeStatus{"runtime_status": status})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/session/%s/runtime-status", f.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("runtime status update rejected: %d", resp.StatusCode)
	}
	return nil
}
