package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"

	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMissingCredentials = "missing_credentials"
	OutcomeUpstreamFailure    = "upstream_failure"
	OutcomeConflict           = "conflict"
	OutcomeInvalidInput       = "invalid_input"

	ResolvePresent = "present"
	ResolveAbsent  = "absent"
	ResolveInvalid = "invalid"
	ResolveExpired = "expired"
	ResolveNoScope = "no_scope"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

const namespace = "guidessite"

// Auth holds the Prometheus collectors for identity and session operations.
// A nil *Auth is valid and records nothing.
type Auth struct {
	signIn        *prometheus.CounterVec
	signUp        *prometheus.CounterVec
	resolve       *prometheus.CounterVec
	lookup        prometheus.Histogram
	cache         *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// NewAuth creates and registers the collectors with reg.
// Pass prometheus.NewRegistry() in tests to keep registrations isolated.
func NewAuth(reg prometheus.Registerer) *Auth {
	f := promauto.With(reg)
	return &Auth{
		signIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_signin_total",
			Help:      "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		signUp: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_signup_total",
			Help:      "Sign-up attempts by outcome.",
		}, []string{"outcome"}),
		resolve: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_session_resolve_total",
			Help:      "Session resolutions by outcome.",
		}, []string{"outcome"}),
		lookup: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_credential_lookup_seconds",
			Help:      "Credential store lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_cache_total",
			Help:      "Credential cache lookups by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// SignIn counts a sign-in attempt.
func (m *Auth) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.signIn.WithLabelValues(outcome).Inc()
}

// SignUp counts a sign-up attempt.
func (m *Auth) SignUp(outcome string) {
	if m == nil {
		return
	}
	m.signUp.WithLabelValues(outcome).Inc()
}

// SessionResolved counts a resolver outcome.
func (m *Auth) SessionResolved(outcome string) {
	if m == nil {
		return
	}
	m.resolve.WithLabelValues(outcome).Inc()
}

// ObserveLookup records the latency of one credential lookup.
func (m *Auth) ObserveLookup(d time.Duration) {
	if m == nil {
		return
	}
	m.lookup.Observe(d.Seconds())
}

// CacheResult counts a credential cache access.
func (m *Auth) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Auth) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(d.Seconds())
}
