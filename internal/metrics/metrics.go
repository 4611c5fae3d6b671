package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters for the validation and gateway paths. Registered on the default
// registry and served by Handler on /metrics.
var (
	ValidationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_validation_results_total",
		Help: "API key validation outcomes by result.",
	}, []string{"result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_gateway_requests_total",
		Help: "Summarize gateway responses by HTTP status.",
	}, []string{"status"})

	UsageConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keygate_usage_units_consumed_total",
		Help: "Total usage units consumed across all API keys.",
	})
)

// Handler adapts the prometheus text exposition handler to gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
