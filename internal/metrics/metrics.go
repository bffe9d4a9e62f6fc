// Package metrics exposes Prometheus collectors for the progress engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcadams/pulse/internal/progress"
)

// Recorder owns the engine's collectors and hands out per-session hub
// observers. All collectors are labeled by session id so one registry serves
// any number of concurrent sessions.
type Recorder struct {
	progressPercent *prometheus.GaugeVec
	visible         *prometheus.GaugeVec
	trackedSteps    *prometheus.GaugeVec
	snapshots       *prometheus.CounterVec
}

// NewRecorder registers the collectors against reg. A nil reg falls back to
// the default registerer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		progressPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_session_progress_percent",
			Help: "Overall progress of a session in [0,100].",
		}, []string{"session"}),
		visible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_session_visible",
			Help: "1 while the session is visible, 0 once hidden.",
		}, []string{"session"}),
		trackedSteps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_session_tracked_steps",
			Help: "Number of steps currently tracked by the session.",
		}, []string{"session"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_snapshots_published_total",
			Help: "Snapshots delivered to observers, partitioned by session.",
		}, []string{"session"}),
	}
	for _, collector := range []prometheus.Collector{
		r.progressPercent,
		r.visible,
		r.trackedSteps,
		r.snapshots,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return r, nil
}

// Observer returns a hub observer that mirrors one session's snapshots into
// the collectors.
func (r *Recorder) Observer(sessionID string) progress.Observer {
	return progress.ObserverFunc(func(snap progress.Snapshot) {
		r.snapshots.WithLabelValues(sessionID).Inc()
		r.progressPercent.WithLabelValues(sessionID).Set(snap.Progress)
		r.trackedSteps.WithLabelValues(sessionID).Set(float64(len(snap.StepUpdates)))
		if snap.Visible {
			r.visible.WithLabelValues(sessionID).Set(1)
		} else {
			r.visible.WithLabelValues(sessionID).Set(0)
		}
	})
}

// Forget drops a removed session's label values so the registry does not
// accumulate series for sessions that no longer exist.
func (r *Recorder) Forget(sessionID string) {
	labels := prometheus.Labels{"session": sessionID}
	r.progressPercent.Delete(labels)
	r.visible.Delete(labels)
	r.trackedSteps.Delete(labels)
	r.snapshots.Delete(labels)
}
