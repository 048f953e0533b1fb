package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// VerifyPath is the server endpoint that verifies tokens and records
// fallback reports.
const VerifyPath = "/api/verify-captcha"

// VerifyRequest is the body of POST /api/verify-captcha. The report fields
// are only set when Token is the sentinel.
type VerifyRequest struct {
	Token    string `json:"token"`
	ReportID string `json:"report_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Host     string `json:"host,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

type VerifyResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HTTPReporter posts fallback reports to the server verification endpoint.
type HTTPReporter struct {
	endpoint string
	client   *http.Client
}

func NewHTTPReporter(baseURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReporter{
		endpoint: strings.TrimSuffix(baseURL, "/") + VerifyPath,
		client:   client,
	}
}

func (r *HTTPReporter) Report(ctx context.Context, report FallbackReport) error {
	body, err := json.Marshal(VerifyRequest{
		Token:    SentinelToken,
		ReportID: report.ID,
		Reason:   report.Reason,
		Host:     report.Host,
		Attempts: report.Attempts,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("captcha: report rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("captcha: decode report response: %w", err)
	}
	return nil
}
