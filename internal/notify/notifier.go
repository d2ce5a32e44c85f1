// Package notify sends fire-and-forget HTTP notifications for finished
// executions. The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// Notifier posts plain-text HTTP notifications for selected results.
// A nil *Notifier is valid and sends nothing.
type Notifier struct {
	url       string
	title     string
	onSuccess bool
	onFailure bool
	client    *http.Client
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// New creates a Notifier. title is used as the X-Title header; if empty,
// "Relay" is used instead. New returns nil when notifURL is empty.
func New(notifURL, title string, onSuccess, onFailure bool, log zerolog.Logger) *Notifier {
	if notifURL == "" {
		return nil
	}
	if title == "" {
		title = "Relay"
	}
	return &Notifier{
		url:       notifURL,
		title:     title,
		onSuccess: onSuccess,
		onFailure: onFailure,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Notify fires an asynchronous POST for res when it matches the configured
// flags.
func (n *Notifier) Notify(job string, res claude.Result) {
	if n == nil {
		return
	}
	if res.Success && !n.onSuccess || !res.Success && !n.onFailure {
		return
	}
	msg := Message(job, res)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.post(msg)
	}()
}

// Wait blocks until every pending POST has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Message renders the notification body for one result.
func Message(job string, res claude.Result) string {
	if job == "" {
		job = "claude"
	}
	elapsed := (time.Duration(res.DurationMS) * time.Millisecond).Round(100 * time.Millisecond)
	var b strings.Builder
	if res.Success {
		fmt.Fprintf(&b, "%s succeeded in %s", job, elapsed)
	} else {
		fmt.Fprintf(&b, "%s failed (exit %d) after %s", job, res.ExitCode, elapsed)
	}
	if res.CostUSD != nil {
		fmt.Fprintf(&b, ", $%.4f", *res.CostUSD)
	}
	if res.SessionID != "" {
		fmt.Fprintf(&b, "\nsession: %s", res.SessionID)
	}
	if !res.Success && res.Error != "" {
		fmt.Fprintf(&b, "\n%s", firstLine(res.Error))
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// post sends a plain-text POST to the configured URL. Failures are logged
// at debug level and never surface to the caller.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		n.log.Debug().Err(err).Msg("notification request")
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Debug().Err(err).Msg("notification post")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Debug().Int("status", resp.StatusCode).Msg("notification rejected")
	}
}
