package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clicksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clicker",
		Name:      "clicks_total",
		Help:      "Click attempts by result.",
	}, []string{"result"})

	purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clicker",
		Name:      "purchases_total",
		Help:      "Purchase attempts by result.",
	}, []string{"result"})

	scanRows = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clicker",
		Name:      "aggregation_scan_rows",
		Help:      "Rows scanned per aggregation.",
		Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
	}, []string{"op"})

	presenceDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clicker",
		Name:      "presence_dropped_total",
		Help:      "Presence updates dropped because the queue was full.",
	}, []string{"action"})
)
