package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	ErrVerifierDisabled = errors.New("captcha: verification secret not configured")
	ErrEmptyToken       = errors.New("captcha: token is required")
)

// SiteVerifyResult is the siteverify response.
type SiteVerifyResult struct {
	Success     bool      `json:"success"`
	ErrorCodes  []string  `json:"error-codes"`
	ChallengeTS time.Time `json:"challenge_ts"`
	Hostname    string    `json:"hostname"`
	Action      string    `json:"action"`
}

// Verifier checks widget tokens against the siteverify API.
type Verifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewVerifier(secret, endpoint string, client *http.Client) *Verifier {
	if endpoint == "" {
		endpoint = DefaultVerifyURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Verifier{secret: strings.TrimSpace(secret), endpoint: endpoint, client: client}
}

func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify submits token. A rejected token is reported through the result,
// not as an error.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (*SiteVerifyResult, error) {
	if !v.Enabled() {
		return nil, ErrVerifierDisabled
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("captcha: siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captcha: siteverify returned status %d", resp.StatusCode)
	}
	var result SiteVerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("captcha: decode siteverify response: %w", err)
	}
	return &result, nil
}
