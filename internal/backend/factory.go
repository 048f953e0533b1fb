package backend

import "sync"

// Factory memoizes a single Client. The client keeps session state and auth
// listeners, so a page context must never hold two of them.
type Factory struct {
	mu     sync.Mutex
	client *Client
}

// DefaultFactory is the process-wide slot used by GetClient.
var DefaultFactory = &Factory{}

// GetClient returns the process-wide client, constructing it on first use.
func GetClient(cfg Config) (*Client, error) {
	return DefaultFactory.Get(cfg)
}

// Get validates cfg and returns the memoized client, creating it when the
// slot is empty.
func (f *Factory) Get(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	f.client = NewClient(cfg)
	return f.client, nil
}

// Reset empties the slot. It is called when the owning page context closes.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.removeAllListeners()
	}
	f.client = nil
}
