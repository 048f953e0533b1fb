package captcha

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/petfeeder/internal/clock"
	"go.uber.org/zap"
)

const (
	DefaultScriptURL   = "https://challenges.cloudflare.com/turnstile/v0/api.js?render=explicit"
	DefaultRetryDelay  = 2 * time.Second
	DefaultLoadTimeout = 10 * time.Second

	reportTimeout = 10 * time.Second
)

type Options struct {
	ScriptURL string
	// Host is the page hostname used to pick the site key.
	Host     string
	SiteKeys SiteKeyResolver

	MaxRetries  int
	RetryDelay  time.Duration
	LoadTimeout time.Duration

	Clock clock.Clock
	// Reporter is optional.
	Reporter Reporter
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ScriptURL == "" {
		o.ScriptURL = DefaultScriptURL
	}
	if o.SiteKeys == nil {
		o.SiteKeys = SiteKeyTable{}
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = MaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// loadAttempt is one injection of the script.
type loadAttempt struct {
	remove   func()
	settled  bool
	failed   bool
	watchdog clock.Timer
}

type widget struct {
	WidgetState
	gen        uint64
	widgetID   string
	retryTimer clock.Timer
}

// Loader drives the widget script through Unloaded, Loading, Ready and
// Fallback. Fallback is absorbing.
type Loader struct {
	doc      Document
	injector ScriptInjector
	opts     Options
	log      *zap.Logger

	mu       sync.Mutex
	status   Status
	attempts int
	current  *loadAttempt
	backoff  clock.Timer
	renderer WidgetRenderer
	widgets  map[string]*widget
	order    []string
	reason   string
	stopped  bool

	settled     chan struct{}
	settleOnce  sync.Once
	reportsSent sync.WaitGroup
}

func NewLoader(doc Document, injector ScriptInjector, opts Options) *Loader {
	opts = opts.withDefaults()
	return &Loader{
		doc:      doc,
		injector: injector,
		opts:     opts,
		log:      opts.Logger.Named("captcha.loader"),
		status:   StatusUnloaded,
		widgets:  make(map[string]*widget),
		settled:  make(chan struct{}),
	}
}

// Start discovers the guarded forms and begins loading the script. It is a
// no-op unless the loader is Unloaded.
func (l *Loader) Start() {
	l.mu.Lock()
	if l.status != StatusUnloaded || l.stopped {
		l.mu.Unlock()
		return
	}
	l.status = StatusLoading
	l.mu.Unlock()

	l.Scan()
	l.attempt()
}

// Scan attaches a container to every guarded form not seen before. New
// containers follow the global state: rendered when Ready, given the
// sentinel in Fallback, queued otherwise.
func (l *Loader) Scan() {
	for _, formID := range l.doc.GuardedForms() {
		cid := ContainerID(formID)
		if err := l.doc.EnsureContainer(formID, cid, TokenFieldID(cid)); err != nil {
			l.log.Warn("cannot attach verification container", zap.String("form", formID), zap.Error(err))
			continue
		}

		l.mu.Lock()
		if _, ok := l.widgets[cid]; ok || l.stopped {
			l.mu.Unlock()
			continue
		}
		w := &widget{WidgetState: WidgetState{FormID: formID, ContainerID: cid, Status: l.status}}
		if l.status == StatusFallback {
			w.Token = SentinelToken
		}
		l.widgets[cid] = w
		l.order = append(l.order, cid)
		status := l.status
		l.mu.Unlock()

		switch status {
		case StatusFallback:
			l.applyFallback(cid)
		case StatusReady:
			l.render(cid)
		}
	}
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Attempts returns how many times the script has been injected.
func (l *Loader) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// FallbackReason is empty unless the loader is in fallback mode.
func (l *Loader) FallbackReason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// State returns a copy of a container's record.
func (l *Loader) State(containerID string) (WidgetState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.widgets[containerID]
	if !ok {
		return WidgetState{}, false
	}
	return w.WidgetState, true
}

// Wait blocks until the script is Ready or the loader fell back.
func (l *Loader) Wait(ctx context.Context) (Status, error) {
	select {
	case <-l.settled:
		return l.Status(), nil
	case <-ctx.Done():
		return l.Status(), ctx.Err()
	}
}

// Check is the submit gate. In fallback mode it always passes with the
// sentinel. Otherwise a missing token blocks the submit, flags the
// container and requests a fresh widget.
func (l *Loader) Check(formID string) (string, bool) {
	cid := ContainerID(formID)

	l.mu.Lock()
	fallback := l.status == StatusFallback
	l.mu.Unlock()
	if fallback {
		return SentinelToken, true
	}

	if token := l.doc.Token(cid); token != "" {
		return token, true
	}
	l.doc.Flag(cid, true)
	l.render(cid)
	return "", false
}

// Reset discards the token of formID and renders a new widget. Tokens are
// single use, so a rejected submit needs a fresh one.
func (l *Loader) Reset(formID string) {
	l.render(ContainerID(formID))
}

// Stop cancels timers and removes every widget. Callbacks arriving later
// are ignored.
func (l *Loader) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.stopTimersLocked()
	renderer := l.renderer
	var widgetIDs []string
	for _, w := range l.widgets {
		w.gen++
		if w.widgetID != "" {
			widgetIDs = append(widgetIDs, w.widgetID)
			w.widgetID = ""
		}
	}
	var remove func()
	if l.current != nil && !l.current.settled {
		remove = l.current.remove
	}
	l.mu.Unlock()

	if renderer != nil {
		for _, id := range widgetIDs {
			renderer.Remove(id)
		}
	}
	if remove != nil {
		remove()
	}
}

// WaitReports blocks until every fallback report goroutine has returned.
func (l *Loader) WaitReports() {
	l.reportsSent.Wait()
}

func (l *Loader) attempt() {
	l.mu.Lock()
	if l.status != StatusLoading || l.stopped {
		l.mu.Unlock()
		return
	}
	if l.attempts >= l.opts.MaxRetries {
		l.mu.Unlock()
		l.enterFallback("script_retries_exhausted")
		return
	}
	l.attempts++
	n := l.attempts
	a := &loadAttempt{}
	l.current = a
	a.watchdog = l.opts.Clock.AfterFunc(l.opts.LoadTimeout, func() {
		l.attemptFailed(a, ErrLoadTimeout)
	})
	l.mu.Unlock()

	l.log.Debug("injecting widget script", zap.Int("attempt", n))
	remove := l.injector.Inject(l.opts.ScriptURL,
		func(r WidgetRenderer) { l.scriptReady(a, r) },
		func(err error) { l.attemptFailed(a, err) },
	)

	l.mu.Lock()
	if a.failed || l.stopped {
		l.mu.Unlock()
		if remove != nil {
			remove()
		}
		return
	}
	a.remove = remove
	l.mu.Unlock()
}

func (l *Loader) attemptFailed(a *loadAttempt, err error) {
	l.mu.Lock()
	if a != l.current || a.settled || l.status != StatusLoading || l.stopped {
		l.mu.Unlock()
		return
	}
	a.settled = true
	a.failed = true
	if a.watchdog != nil {
		a.watchdog.Stop()
	}
	remove := a.remove
	n := l.attempts
	exhausted := n >= l.opts.MaxRetries
	if !exhausted {
		l.backoff = l.opts.Clock.AfterFunc(l.opts.RetryDelay, l.attempt)
	}
	l.mu.Unlock()

	if remove != nil {
		remove()
	}
	l.log.Warn("widget script load failed", zap.Int("attempt", n), zap.Bool("exhausted", exhausted), zap.Error(err))

	if exhausted {
		reason := "script_load_failed"
		if errors.Is(err, ErrLoadTimeout) {
			reason = "script_load_timeout"
		}
		l.enterFallback(reason)
	}
}

func (l *Loader) scriptReady(a *loadAttempt, r WidgetRenderer) {
	l.mu.Lock()
	if a != l.current || a.settled || l.status != StatusLoading || l.stopped {
		l.mu.Unlock()
		return
	}
	a.settled = true
	if a.watchdog != nil {
		a.watchdog.Stop()
	}
	l.status = StatusReady
	l.renderer = r
	containers := append([]string(nil), l.order...)
	l.mu.Unlock()

	l.settle()
	l.log.Info("widget script ready", zap.Int("attempts", l.Attempts()))
	for _, cid := range containers {
		l.render(cid)
	}
}

// render destroys any previous widget of cid and requests a new one.
func (l *Loader) render(cid string) {
	l.mu.Lock()
	w, ok := l.widgets[cid]
	if !ok || l.status != StatusReady || l.stopped || w.Status == StatusFallback {
		l.mu.Unlock()
		return
	}
	if w.retryTimer != nil {
		w.retryTimer.Stop()
		w.retryTimer = nil
	}
	w.gen++
	gen := w.gen
	w.Status = StatusLoading
	w.Token = ""
	previous := w.widgetID
	w.widgetID = ""
	r := l.renderer
	l.mu.Unlock()

	if !l.doc.HasContainer(cid) {
		l.forget(cid)
		return
	}
	if previous != "" {
		r.Remove(previous)
	}
	l.doc.SetToken(cid, "")

	id, err := r.Render(cid, RenderOptions{
		SiteKey:         l.opts.SiteKeys.SiteKey(l.opts.Host),
		Callback:        func(token string) { l.onToken(cid, gen, token) },
		ErrorCallback:   func(code string) { l.onWidgetError(cid, gen, code) },
		ExpiredCallback: func() { l.onExpired(cid, gen) },
	})
	if err != nil {
		code := "render_failed"
		var rerr *RenderError
		if errors.As(err, &rerr) {
			code = rerr.Code
		}
		l.onWidgetError(cid, gen, code)
		return
	}

	l.mu.Lock()
	if cur, ok := l.widgets[cid]; ok && cur == w && w.gen == gen {
		w.widgetID = id
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	// superseded while rendering
	r.Remove(id)
}

// live returns the widget if the callback generation is still current.
func (l *Loader) live(cid string, gen uint64) (*widget, bool) {
	w, ok := l.widgets[cid]
	if !ok || w.gen != gen || l.stopped || l.status == StatusFallback {
		return nil, false
	}
	return w, true
}

func (l *Loader) onToken(cid string, gen uint64, token string) {
	if !l.doc.HasContainer(cid) {
		l.forget(cid)
		return
	}
	l.mu.Lock()
	w, ok := l.live(cid, gen)
	if !ok {
		l.mu.Unlock()
		return
	}
	w.Token = token
	w.Status = StatusReady
	l.mu.Unlock()

	l.doc.SetToken(cid, token)
	l.doc.Flag(cid, false)
}

func (l *Loader) onExpired(cid string, gen uint64) {
	l.mu.Lock()
	_, ok := l.live(cid, gen)
	l.mu.Unlock()
	if !ok {
		return
	}
	l.log.Debug("widget token expired", zap.String("container", cid))
	l.render(cid)
}

func (l *Loader) onWidgetError(cid string, gen uint64, code string) {
	if IsTerminal(code) {
		l.mu.Lock()
		_, ok := l.live(cid, gen)
		l.mu.Unlock()
		if ok {
			l.log.Warn("widget rejected site key or domain", zap.String("container", cid), zap.String("code", code))
			l.enterFallback("widget_error_" + code)
		}
		return
	}

	l.mu.Lock()
	w, ok := l.live(cid, gen)
	if !ok {
		l.mu.Unlock()
		return
	}
	w.RetryCount++
	w.Token = ""
	retries := w.RetryCount
	exhausted := retries > l.opts.MaxRetries
	if !exhausted {
		w.retryTimer = l.opts.Clock.AfterFunc(l.opts.RetryDelay, func() {
			l.mu.Lock()
			_, still := l.live(cid, gen)
			l.mu.Unlock()
			if still {
				l.render(cid)
			}
		})
	}
	l.mu.Unlock()

	l.log.Warn("widget error", zap.String("container", cid), zap.String("code", code), zap.Int("retries", retries))
	if exhausted {
		l.enterFallback("widget_retries_exhausted")
	}
}

// enterFallback switches every container, current and future, to the
// sentinel token and stops all loading.
func (l *Loader) enterFallback(reason string) {
	l.mu.Lock()
	if l.status == StatusFallback || l.stopped {
		l.mu.Unlock()
		return
	}
	l.status = StatusFallback
	l.reason = reason
	l.stopTimersLocked()
	var remove func()
	if l.current != nil && !l.current.settled {
		l.current.settled = true
		remove = l.current.remove
	}
	renderer := l.renderer
	var widgetIDs []string
	for _, w := range l.widgets {
		w.gen++
		w.Status = StatusFallback
		w.Token = SentinelToken
		if w.retryTimer != nil {
			w.retryTimer.Stop()
			w.retryTimer = nil
		}
		if w.widgetID != "" {
			widgetIDs = append(widgetIDs, w.widgetID)
			w.widgetID = ""
		}
	}
	containers := append([]string(nil), l.order...)
	report := FallbackReport{
		ID:         ulid.Make().String(),
		Reason:     reason,
		Host:       l.opts.Host,
		Attempts:   l.attempts,
		OccurredAt: l.opts.Clock.Now().UTC(),
	}
	l.mu.Unlock()

	l.log.Warn("captcha fallback mode entered", zap.String("reason", reason), zap.Int("attempts", report.Attempts))
	if remove != nil {
		remove()
	}
	if renderer != nil {
		for _, id := range widgetIDs {
			renderer.Remove(id)
		}
	}
	for _, cid := range containers {
		l.applyFallback(cid)
	}
	l.report(report)
	l.settle()
}

func (l *Loader) applyFallback(cid string) {
	if !l.doc.HasContainer(cid) {
		l.forget(cid)
		return
	}
	l.doc.ShowFallback(cid, FallbackMessage)
	l.doc.SetToken(cid, SentinelToken)
	l.doc.Flag(cid, false)
}

func (l *Loader) report(r FallbackReport) {
	if l.opts.Reporter == nil {
		return
	}
	l.reportsSent.Add(1)
	go func() {
		defer l.reportsSent.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := l.opts.Reporter.Report(ctx, r); err != nil {
			l.log.Warn("fallback report failed", zap.String("report_id", r.ID), zap.Error(err))
		}
	}()
}

// forget drops a container that is no longer in the document.
func (l *Loader) forget(cid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.widgets[cid]
	if !ok {
		return
	}
	if w.retryTimer != nil {
		w.retryTimer.Stop()
	}
	delete(l.widgets, cid)
	for i, id := range l.order {
		if id == cid {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Loader) stopTimersLocked() {
	if l.backoff != nil {
		l.backoff.Stop()
		l.backoff = nil
	}
	if l.current != nil && l.current.watchdog != nil {
		l.current.watchdog.Stop()
	}
}

func (l *Loader) settle() {
	l.settleOnce.Do(func() { close(l.settled) })
}
