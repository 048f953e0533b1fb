package cli

import (
	"fmt"
	"io"
	"sync"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
)

// Terminal renders flow state as lines of text and records navigation.
type Terminal struct {
	out io.Writer

	mu        sync.Mutex
	navigated []string
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) SetBusy(string, bool) {}

func (t *Terminal) ShowError(form string, res authdomain.FlowResult) {
	if res.Field != "" {
		fmt.Fprintf(t.out, "error: %s (%s)\n", res.Message, res.Field)
		return
	}
	fmt.Fprintf(t.out, "error: %s\n", res.Message)
}

func (t *Terminal) ShowSuccess(form string, res authdomain.FlowResult) {
	fmt.Fprintln(t.out, res.Message)
}

func (t *Terminal) HideForm(string) {}

func (t *Terminal) Navigate(target string) {
	t.mu.Lock()
	t.navigated = append(t.navigated, target)
	t.mu.Unlock()
}

// LastNavigation returns the most recent navigation target.
func (t *Terminal) LastNavigation() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.navigated) == 0 {
		return ""
	}
	return t.navigated[len(t.navigated)-1]
}
