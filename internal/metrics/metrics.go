// Package metrics exports per-transport execution counters and latency
// histograms in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

var (
	registerOnce sync.Once

	executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "executions",
			Name:      "total",
			Help:      "Finished Claude CLI executions.",
		},
		[]string{"transport", "outcome"},
	)
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Claude CLI execution duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"transport", "outcome"},
	)
	costUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "cost_usd_total",
			Help:      "Reported Claude cost in USD.",
		},
		[]string{"transport"},
	)
	tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "tokens_total",
			Help:      "Reported Claude token usage.",
		},
		[]string{"transport", "direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(executions, executionDuration, costUSD, tokens)
	})
}

// Outcome classifies a Result for metric labels.
func Outcome(res claude.Result) string {
	switch {
	case res.Success:
		return OutcomeSuccess
	case res.ExitCode == claude.ExitTimeout:
		return OutcomeTimeout
	case res.ExitCode == claude.ExitCancelled:
		return OutcomeCancelled
	}
	return OutcomeFailure
}

// Record counts one finished execution. Its signature matches
// transport.Dispatcher.Observe.
func Record(mode credential.Mode, res claude.Result) {
	RegisterMetrics()
	transport := string(mode)
	outcome := Outcome(res)
	executions.WithLabelValues(transport, outcome).Inc()
	executionDuration.WithLabelValues(transport, outcome).
		Observe((time.Duration(res.DurationMS) * time.Millisecond).Seconds())
	if res.CostUSD != nil && *res.CostUSD > 0 {
		costUSD.WithLabelValues(transport).Add(*res.CostUSD)
	}
	if res.Usage != nil {
		tokens.WithLabelValues(transport, "input").Add(float64(res.Usage.InputTokens))
		tokens.WithLabelValues(transport, "output").Add(float64(res.Usage.OutputTokens))
	}
}

// Router serves /metrics and /healthz.
func Router() *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Server is a running metrics endpoint.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// Listen starts serving Router on addr.
func Listen(addr string, log zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv:  &http.Server{Handler: Router(), ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
		done: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("metrics listening")
	return s, nil
}

// Addr is the bound address, useful when Listen was given port 0.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
