package video

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "takecam",
		Name:      "frames_written_total",
		Help:      "Frames written to take files.",
	})
	takesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "takecam",
		Name:      "takes_total",
		Help:      "Finished takes by end status.",
	}, []string{"status"})
	takeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "takecam",
		Name:      "take_duration_seconds",
		Help:      "Recorded length of finished takes.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	takeMeanFPS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "takecam",
		Name:      "take_mean_fps",
		Help:      "Mean capture rate of the last finished take.",
	})
	recording = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "takecam",
		Name:      "recording",
		Help:      "1 while a take is being recorded.",
	})
)

func init() {
	prometheus.MustRegister(framesWritten, takesTotal, takeDuration, takeMeanFPS, recording)
}

func observeTakeEnded(r Result) {
	takesTotal.WithLabelValues(r.Status.String()).Inc()
	if r.Status != StatusOpenFailure {
		takeDuration.Observe(r.Stats.Elapsed.Seconds())
		takeMeanFPS.Set(r.Stats.MeanFPS())
	}
	recording.Set(0)
}
