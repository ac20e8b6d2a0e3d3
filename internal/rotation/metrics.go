package rotation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rotationsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_rotations_started_total",
		Help: "Total rotations that passed preflight and opened a ledger record",
	}, []string{"secret_type"})

	rotationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_rotations_total",
		Help: "Total rotations by terminal status",
	}, []string{"secret_type", "status"})

	rotationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rotor_rotation_duration_seconds",
		Help:    "Wall time from ledger record creation to terminal status",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"secret_type"})

	verificationAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rotor_verification_attempts",
		Help:    "Probe attempts consumed before verification settled",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 30},
	}, []string{"secret_type"})
)
