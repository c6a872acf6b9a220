package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "microfeed", Name: "requests_total", Help: "Authenticated API calls by outcome."},
		[]string{"outcome"},
	)
	Refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "microfeed", Name: "token_refreshes_total", Help: "Access token refresh attempts by outcome."},
		[]string{"outcome"},
	)
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "microfeed", Name: "mutations_total", Help: "Optimistic mutations by outcome."},
		[]string{"outcome"},
	)
	LivePosts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "microfeed", Name: "live_posts_total", Help: "Posts received on the live channel."},
	)
)

// Request outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeAPIError       = "api_error"
	OutcomeNetworkError   = "network_error"
	OutcomeAuthFailure    = "auth_failure"
	OutcomeNoRefreshToken = "no_refresh_token"
	OutcomeRejected       = "rejected"
	OutcomeReconciled     = "reconciled"
	OutcomeRolledBack     = "rolled_back"
	OutcomeSuppressed     = "suppressed"
	OutcomeDetached       = "detached"
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(Refreshes)
	reg.MustRegister(Mutations)
	reg.MustRegister(LivePosts)
}
