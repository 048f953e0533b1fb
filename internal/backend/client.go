package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/clock"
	"go.uber.org/zap"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"

	headerAPIKey = "apikey"
)

// Client is a handle on one backend project. It owns the current session and
// the auth state listeners; obtain it through GetClient.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	storage    SessionStorage
	clock      clock.Clock
	log        *zap.Logger

	mu      sync.Mutex
	session *Session
	loaded  bool

	listenersMu sync.Mutex
	listeners   []authListener
	nextID      uint64
}

type authListener struct {
	id uint64
	fn func(authdomain.SessionEvent)
}

// NewClient builds a client without going through the factory slot. Callers
// are expected to have validated cfg.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.normalizedURL(),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		storage:    storage,
		clock:      clk,
		log:        log.Named("backend"),
	}
}

// BaseURL returns the normalized project URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnAuthStateChange registers fn for session events. Events are delivered
// synchronously in registration order. The returned func unregisters fn.
func (c *Client) OnAuthStateChange(fn func(authdomain.SessionEvent)) func() {
	c.listenersMu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, authListener{id: id, fn: fn})
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) removeAllListeners() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = nil
}

func (c *Client) emit(ev authdomain.SessionEvent) {
	c.listenersMu.Lock()
	snapshot := make([]authListener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.listenersMu.Unlock()

	for _, l := range snapshot {
		l.fn(ev)
	}
}

// currentSession returns the in-memory session, loading it from storage on
// first access.
func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.loaded = true
		stored, err := c.storage.Load()
		if err != nil {
			c.log.Warn("failed to load stored session", zap.Error(err))
		}
		c.session = stored
	}
	return c.session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.loaded = true
	c.mu.Unlock()

	if err := c.storage.Save(s); err != nil {
		c.log.Warn("failed to persist session", zap.Error(err))
	}
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.loaded = true
	c.mu.Unlock()

	if err := c.storage.Clear(); err != nil {
		c.log.Warn("failed to clear stored session", zap.Error(err))
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAPIKey, c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Non-2xx responses become
// *APIError; transport failures become *NetworkError.
func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
