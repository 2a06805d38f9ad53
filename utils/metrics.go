package utils

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitquest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitquest_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitquest_xp_awarded_total",
			Help: "XP awarded to users, by source",
		},
		[]string{"source"},
	)

	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "habitquest_level_ups_total",
			Help: "Number of level transitions",
		},
	)

	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitquest_achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement code",
		},
		[]string{"code"},
	)

	FriendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitquest_friend_requests_total",
			Help: "Friend request transitions, by resulting status",
		},
		[]string{"status"},
	)
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	prometheus.MustRegister(
		ReqCount,
		ReqDuration,
		XPAwarded,
		LevelUps,
		AchievementsUnlocked,
		FriendRequests,
	)
}
