package captcha

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPScriptInjector fetches the widget script over HTTP. A successful
// fetch hands Renderer to the loader; hosts without a script engine pair it
// with TokenRenderer.
type HTTPScriptInjector struct {
	Client   *http.Client
	Renderer WidgetRenderer
}

func (h *HTTPScriptInjector) Inject(src string, onReady func(WidgetRenderer), onError func(error)) func() {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			onError(err)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				onError(fmt.Errorf("%w: %v", ErrLoadFailed, err))
			}
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			onError(fmt.Errorf("%w: status %d", ErrLoadFailed, resp.StatusCode))
			return
		}
		onReady(h.Renderer)
	}()
	return cancel
}

// TokenRenderer issues a pre-obtained token. Without one it reports the
// terminal unsupported_environment error.
type TokenRenderer struct {
	Token string

	mu   sync.Mutex
	next int
}

func (t *TokenRenderer) Render(containerID string, opts RenderOptions) (string, error) {
	if t.Token == "" {
		return "", &RenderError{Code: "unsupported_environment"}
	}
	t.mu.Lock()
	t.next++
	id := fmt.Sprintf("headless-%d", t.next)
	t.mu.Unlock()

	if opts.Callback != nil {
		opts.Callback(t.Token)
	}
	return id, nil
}

func (t *TokenRenderer) Remove(string) {}

// MemoryDocument is a Document without a page: containers are records in
// memory. It is used by headless hosts.
type MemoryDocument struct {
	mu         sync.Mutex
	forms      []string
	containers map[string]*memoryContainer
}

type memoryContainer struct {
	formID  string
	token   string
	flagged bool
	message string
}

func NewMemoryDocument(forms ...string) *MemoryDocument {
	return &MemoryDocument{
		forms:      append([]string(nil), forms...),
		containers: make(map[string]*memoryContainer),
	}
}

// AddForm marks another form as guarded.
func (d *MemoryDocument) AddForm(formID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forms = append(d.forms, formID)
}

// RemoveForm drops the form and its container.
func (d *MemoryDocument) RemoveForm(formID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, f := range d.forms {
		if f == formID {
			d.forms = append(d.forms[:i:i], d.forms[i+1:]...)
			break
		}
	}
	delete(d.containers, ContainerID(formID))
}

func (d *MemoryDocument) GuardedForms() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.forms...)
}

func (d *MemoryDocument) EnsureContainer(formID, containerID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[containerID]; !ok {
		d.containers[containerID] = &memoryContainer{formID: formID}
	}
	return nil
}

func (d *MemoryDocument) HasContainer(containerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.containers[containerID]
	return ok
}

func (d *MemoryDocument) Token(containerID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		return c.token
	}
	return ""
}

func (d *MemoryDocument) SetToken(containerID, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		c.token = token
	}
}

func (d *MemoryDocument) Flag(containerID string, flagged bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		c.flagged = flagged
	}
}

func (d *MemoryDocument) ShowFallback(containerID, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		c.message = message
	}
}

// Flagged reports whether the container is highlighted.
func (d *MemoryDocument) Flagged(containerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[containerID]
	return ok && c.flagged
}

// Message returns the static message shown in the container, if any.
func (d *MemoryDocument) Message(containerID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		return c.message
	}
	return ""
}
