package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	onlineUsersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_online_users",
		Help: "Number of users with at least one live connection.",
	})

	routedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_routed_total",
			Help: "Number of routed messages by delivery outcome.",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics 在 main 包里注册到 Prometheus
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(onlineUsersGauge, routedCounter)
}
