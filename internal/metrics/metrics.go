// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageEntered counts check-in sessions entering each stage.
	StageEntered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "checkin_stage_entered_total",
		Help:      "Check-in sessions entering a stage.",
	}, []string{"stage"})

	// DeviceDenied counts capture devices the browser refused to hand over.
	DeviceDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "checkin_device_denied_total",
		Help:      "Capture device acquisitions that failed.",
	}, []string{"device"})

	CheckinsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "checkin_completed_total",
		Help:      "Check-in sessions that produced an attendance record.",
	})

	CheckinsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "checkin_record_failed_total",
		Help:      "Check-in sessions whose record could not be stored.",
	})

	Reviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "attendance_reviews_total",
		Help:      "Review decisions applied to attendance records.",
	}, []string{"status"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presensure",
		Name:      "store_errors_total",
		Help:      "Persistence backend failures by operation.",
	}, []string{"op"})

	// ActiveSessions tracks open websocket connections by kind.
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "presensure",
		Name:      "realtime_connections",
		Help:      "Open websocket connections.",
	}, []string{"kind"})
)
