package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/petfeeder/internal/backend"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/smallbiznis/petfeeder/internal/config"
	"github.com/smallbiznis/petfeeder/internal/page"
	"go.uber.org/zap"
)

// ErrNotSignedIn is returned by commands that need a stored session.
var ErrNotSignedIn = errors.New("not signed in, run feederctl login")

// errFlowFailed marks a flow failure the terminal has already printed.
var errFlowFailed = errors.New("flow failed")

const tokenPollInterval = 20 * time.Millisecond

type runtime struct {
	cfg   Config
	in    io.Reader
	out   io.Writer
	store *FileStore
	term  *Terminal
	http  *http.Client
	log   *zap.Logger
}

func newRuntime(cfg Config, in io.Reader, out io.Writer) (*runtime, error) {
	log := zap.NewNop()
	if cfg.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = l
	}
	return &runtime{
		cfg:   cfg,
		in:    in,
		out:   out,
		store: NewFileStore(cfg.StatePath()),
		term:  NewTerminal(out),
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   log.Named("feederctl"),
	}, nil
}

// open builds a page context for location. forms lists the guarded forms
// present on the page; with none, no verification widget is loaded.
func (r *runtime) open(ctx context.Context, location string, forms ...string) (*page.Context, error) {
	platform := page.Platform{
		Navigator: r.term,
		Presenter: r.term,
		Storage:   r.store,
		Verifiers: r.store,
		// Each command owns its client slot.
		Factory:    &backend.Factory{},
		HTTPClient: r.http,
	}
	if len(forms) > 0 {
		platform.Document = captcha.NewMemoryDocument(forms...)
		platform.Injector = &captcha.HTTPScriptInjector{
			Client:   r.http,
			Renderer: &captcha.TokenRenderer{Token: r.cfg.CaptchaToken},
		}
		platform.Reporter = captcha.NewHTTPReporter(r.cfg.SiteURL, r.http)
	}

	pc, err := page.Open(ctx, page.Config{
		BackendURL:       r.cfg.BackendURL,
		AnonKey:          r.cfg.AnonKey,
		SiteURL:          r.cfg.SiteURL,
		Location:         r.cfg.SiteURL + location,
		CaptchaScriptURL: r.cfg.CaptchaScriptURL,
		CaptchaSiteKeys:  config.DefaultSiteKeys(),
	}, platform, r.log)
	if err != nil {
		return nil, fmt.Errorf("backend is not configured: %w", err)
	}
	if pc.Captcha != nil {
		for _, form := range forms {
			r.awaitToken(ctx, pc.Captcha, form)
		}
	}
	return pc, nil
}

// awaitToken waits until the widget of form holds a token or the loader
// fell back. The submit gate decides what happens after a timeout.
func (r *runtime) awaitToken(ctx context.Context, loader *captcha.Loader, form string) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CaptchaTimeout)
	defer cancel()

	if _, err := loader.Wait(ctx); err != nil {
		r.log.Warn("verification widget did not settle", zap.Error(err))
		return
	}
	ticker := time.NewTicker(tokenPollInterval)
	defer ticker.Stop()
	for {
		if loader.Status() == captcha.StatusFallback {
			return
		}
		if st, ok := loader.State(captcha.ContainerID(form)); ok && st.Token != "" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readSecret returns value or, when empty, the next line of input.
func (r *runtime) readSecret(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(r.out, prompt)
	line, err := readLine(r.in)
	if err != nil {
		return "", err
	}
	return line, nil
}

func readLine(in io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
