// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's application metrics.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	AuthRejections    *prometheus.CounterVec
	PasswordVerifySec prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates the application metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devices_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		AuthRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devices_auth_rejections_total",
				Help: "Requests rejected by the authentication middleware, by error kind",
			},
			[]string{"kind"},
		),
		PasswordVerifySec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "devices_password_verify_seconds",
			Help:    "Wall time of argon2id password verification",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devices_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devices_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.LoginAttempts, m.AuthRejections, m.PasswordVerifySec, m.HTTPRequests, m.HTTPDuration)
	return m
}

// ObservePasswordVerify records one verification duration. It has the shape
// of auth.VerifyObserver.
func (m *Metrics) ObservePasswordVerify(d time.Duration) {
	m.PasswordVerifySec.Observe(d.Seconds())
}
