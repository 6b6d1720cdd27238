package accounts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// loginAttempts tracks login outcomes
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_login_total",
		Help: "Total number of login attempts by result",
	}, []string{"result"})

	// tokenVerifications tracks bearer token verification outcomes
	tokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_token_verifications_total",
		Help: "Total number of token verifications by result",
	}, []string{"result"})

	// adminReconciliations tracks admin bootstrap outcomes
	adminReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_admin_reconcile_total",
		Help: "Total number of admin reconciliation runs by outcome",
	}, []string{"outcome"})

	// passwordHashDuration tracks bcrypt hashing time
	passwordHashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "accounts_password_hash_duration_seconds",
		Help:    "Histogram of password hashing duration",
		Buckets: prometheus.DefBuckets,
	})
)
