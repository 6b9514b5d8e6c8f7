// deepsignature/deepsignature_metrics.go
// Prometheus instrumentation for signature help and declaration lookups.
package deepsignature

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// signatureHelpTotal counts signature help requests by terminal outcome.
	// Labels: outcome (result, no_call_site, no_token, self_declaration, ...)
	signatureHelpTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepsignature",
		Subsystem: "signature_help",
		Name:      "total",
		Help:      "Signature help requests by outcome",
	}, []string{"outcome"})

	// declarationLookupSeconds measures declaration lookups by tool and the tier that answered.
	// Labels: tool (godef, godoc, gogetdoc), source (memory, disk, loader, shared)
	declarationLookupSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "deepsignature",
		Subsystem: "lookup",
		Name:      "duration_seconds",
		Help:      "Declaration lookup latency by docs tool and answering tier",
		Buckets:   []float64{0.0005, 0.005, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"tool", "source"})

	// declarationCacheTotal counts cache probes.
	// Labels: tier (memory, disk), result (hit, miss, error)
	declarationCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepsignature",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Declaration cache probes by tier and result",
	}, []string{"tier", "result"})
)

const (
	outcomeResult          = "result"
	outcomeNoCallSite      = "no_call_site"
	outcomeNoToken         = "no_token"
	outcomeNoDeclaration   = "no_declaration"
	outcomeLookupFailed    = "lookup_failed"
	outcomeSelfDeclaration = "self_declaration"
	outcomeEmpty           = "empty_declaration"
	outcomeUnknownFormat   = "unknown_format"
	outcomeMalformed       = "malformed_declaration"
	outcomeCancelled       = "cancelled"
)

// outcomeFor classifies the error that ended a signature help request.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeResult
	case errors.Is(err, ErrNoCallSite):
		return outcomeNoCallSite
	case errors.Is(err, ErrNoPrecedingToken):
		return outcomeNoToken
	case errors.Is(err, ErrSelfDeclaration):
		return outcomeSelfDeclaration
	case errors.Is(err, ErrEmptyDeclaration):
		return outcomeEmpty
	case errors.Is(err, ErrUnknownDeclarationFormat):
		return outcomeUnknownFormat
	case errors.Is(err, ErrMalformedDeclaration):
		return outcomeMalformed
	case errors.Is(err, ErrNoDeclaration):
		return outcomeNoDeclaration
	case isContextErr(err):
		return outcomeCancelled
	default:
		return outcomeLookupFailed
	}
}

func recordSignatureHelp(err error) {
	signatureHelpTotal.WithLabelValues(outcomeFor(err)).Inc()
}

func recordLookup(tool DocsTool, source string, elapsed time.Duration) {
	declarationLookupSeconds.WithLabelValues(string(tool), source).Observe(elapsed.Seconds())
}

func recordCacheProbe(tier, result string) {
	declarationCacheTotal.WithLabelValues(tier, result).Inc()
}
