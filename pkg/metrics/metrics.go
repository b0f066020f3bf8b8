package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 提案/项目生命周期操作计数
	LifecycleOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symbio_lifecycle_ops_total",
			Help: "Lifecycle operations by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: ok, not_found, invalid_state, forbidden, conflict, error
	)

	// 生命周期操作耗时（秒）
	LifecycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "symbio_lifecycle_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Outbox 发布结果
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events handed to the broker, by routing key and result",
		},
		[]string{"routing_key", "result"},
	)

	// 通知投递结果
	NotificationDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notifications pushed to realtime channels",
		},
		[]string{"type", "result"},
	)

	// 信誉分任务
	ScoringRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credibility_scoring_runs_total",
			Help: "Credibility scoring job runs by result",
		},
		[]string{"result"}, // ok, skipped, failed
	)

	ScoringProfilesUpdated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credibility_scoring_profiles_updated",
			Help: "Profiles rewritten by the last successful scoring run",
		},
	)

	// 慢查询
	SlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"sql"},
	)
)

// RecordLifecycle 记录一次生命周期操作
func RecordLifecycle(operation, outcome string, duration time.Duration) {
	LifecycleOps.WithLabelValues(operation, outcome).Inc()
	LifecycleDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementOutboxPublished 记录 outbox 发布结果
func IncrementOutboxPublished(routingKey, result string) {
	OutboxPublished.WithLabelValues(routingKey, result).Inc()
}

// IncrementNotificationDelivered 记录通知投递结果
func IncrementNotificationDelivered(notificationType, result string) {
	NotificationDelivered.WithLabelValues(notificationType, result).Inc()
}

// RecordScoringRun 记录信誉分任务结果
func RecordScoringRun(result string, profiles int) {
	ScoringRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		ScoringProfilesUpdated.Set(float64(profiles))
	}
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(sql string, _ time.Duration) {
	SlowQueries.WithLabelValues(sql).Inc()
}
