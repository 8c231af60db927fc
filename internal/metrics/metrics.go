// Package metrics defines the Prometheus instruments. Standalone so
// both the middleware and the services can import it without cycles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "idp_http_request_duration_seconds",
		Help:    "Request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idp_http_requests_total",
		Help: "Requests served by route and status",
	}, []string{"route", "method", "status"})

	HTTPInflightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idp_http_inflight_requests",
		Help: "Requests currently being served",
	})

	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idp_token_exchanges_total",
		Help: "Token endpoint outcomes by grant type and result",
	}, []string{"grant_type", "result"})

	AuthorizationsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idp_authorizations_started_total",
		Help: "Authorize requests that passed validation and reached consent",
	})

	CodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idp_authorization_codes_issued_total",
		Help: "Authorization codes issued after consent approval",
	})

	RefreshReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idp_refresh_replays_detected_total",
		Help: "Revoked refresh tokens presented again (family revocations)",
	})
)

// Register installs every instrument on reg (default registry if nil).
// Double registration is tolerated so tests can call it freely.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		HTTPRequestDuration,
		HTTPRequestsTotal,
		HTTPInflightRequests,
		TokenExchanges,
		AuthorizationsStarted,
		CodesIssued,
		RefreshReplays,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
