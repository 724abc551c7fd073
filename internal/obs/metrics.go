// Package obs exposes Prometheus metrics for the authorization core.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization guard outcomes.",
		},
		[]string{"result"}, // admit | unauthorized | forbidden
	)

	tokenOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_operations_total",
			Help: "Token service operations by outcome.",
		},
		[]string{"op", "result"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"}, // ok | denied
	)
)

// Init registers metrics in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(authzDecisions, tokenOps, loginAttempts)
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthzDecision counts one guard outcome.
func AuthzDecision(result string) {
	authzDecisions.WithLabelValues(result).Inc()
}

// TokenOp counts one token service operation.
func TokenOp(op, result string) {
	tokenOps.WithLabelValues(op, result).Inc()
}

// LoginAttempt counts one login outcome.
func LoginAttempt(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}
