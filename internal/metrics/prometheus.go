package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	AuthCodesIssuedTotal   prometheus.Counter
	TokensIssuedTotal      prometheus.Counter
	TokensRefreshedTotal   prometheus.Counter
	TokensRevokedTotal     prometheus.Counter
	CodeReuseDetectedTotal prometheus.Counter
	LoginSuccessTotal      prometheus.Counter
	LoginFailureTotal      prometheus.Counter
)

// InitCustomMetrics initializes and registers the server's Prometheus
// metrics. It should be called once at application startup; until then
// the Inc helpers are no-ops.
func InitCustomMetrics(reg prometheus.Registerer) {
	AuthCodesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_auth_codes_issued_total",
		Help: "Total number of authorization codes issued.",
	})
	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_tokens_issued_total",
		Help: "Total number of access/refresh tokens issued.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_tokens_refreshed_total",
		Help: "Total number of refresh grants served.",
	})
	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_tokens_revoked_total",
		Help: "Total number of tokens revoked.",
	})
	CodeReuseDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_code_reuse_detected_total",
		Help: "Total number of authorization code replay attempts detected.",
	})
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signet_logins_failure_total",
		Help: "Total number of failed logins.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics")
		return
	}

	collectors := []prometheus.Collector{
		AuthCodesIssuedTotal,
		TokensIssuedTotal,
		TokensRefreshedTotal,
		TokensRevokedTotal,
		CodeReuseDetectedTotal,
		LoginSuccessTotal,
		LoginFailureTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Prometheus metrics registered")
}

// inc increments a counter if metrics were initialized.
func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func IncAuthCodesIssued()   { inc(AuthCodesIssuedTotal) }
func IncTokensIssued()      { inc(TokensIssuedTotal) }
func IncTokensRefreshed()   { inc(TokensRefreshedTotal) }
func IncTokensRevoked()     { inc(TokensRevokedTotal) }
func IncCodeReuseDetected() { inc(CodeReuseDetectedTotal) }
func IncLoginSuccess()      { inc(LoginSuccessTotal) }
func IncLoginFailure()      { inc(LoginFailureTotal) }
