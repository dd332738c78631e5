package metrics

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "propertydesk"

// maxLabelLen bounds label values taken from requests.
const maxLabelLen = 64

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	transitions = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "transitions_total",
		Help:      "Entitlement operations by operation and outcome",
	}, []string{"op", "outcome"})

	reconciliations = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "lazy_reconciliations_total",
		Help:      "Expired statuses persisted on read",
	})

	degraded = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "degraded_responses_total",
		Help:      "Entitlement reads answered with the fail-closed default",
	}, []string{"reason"})

	gatewayRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Checkout creation calls by provider and outcome",
	}, []string{"provider", "outcome"})

	callbacks = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "callbacks_total",
		Help:      "Inbound checkout callbacks by status and handling result",
	}, []string{"status", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

func RecordTransition(op string, err error) {
	transitions.WithLabelValues(sanitizeLabel(op), outcomeOf(err)).Inc()
}

func RecordReconciliation() {
	reconciliations.Inc()
}

func RecordDegraded(reason string) {
	degraded.WithLabelValues(sanitizeLabel(reason)).Inc()
}

func RecordGatewayRequest(provider string, err error) {
	gatewayRequests.WithLabelValues(sanitizeLabel(provider), outcomeOf(err)).Inc()
}

func RecordCallback(status, result string) {
	callbacks.WithLabelValues(sanitizeLabel(status), sanitizeLabel(result)).Inc()
}

// outcomeOf reduces an error to a small label set. Packages register their
// sentinel errors through RegisterOutcome so metrics stays import free.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

type outcome struct {
	err   error
	label string
}

var outcomes []outcome

// RegisterOutcome maps a sentinel error to a metric label. Call from init.
func RegisterOutcome(err error, label string) {
	outcomes = append(outcomes, outcome{err: err, label: sanitizeLabel(label)})
}

func sanitizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}
