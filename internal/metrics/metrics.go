package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VoiceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepack_voice_requests_total",
		Help: "Voice requests processed, by intent and source.",
	}, []string{"intent", "source"})

	VoiceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicepack_voice_latency_seconds",
		Help:    "End-to-end voice request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	TTSCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepack_tts_cache_lookups_total",
		Help: "Speech cache lookups, by result (hit, miss).",
	}, []string{"result"})

	TTSFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepack_tts_failures_total",
		Help: "Speech synthesis failures.",
	})

	TranscriptionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepack_transcription_failures_total",
		Help: "Upload transcription failures, by stage (convert, stt).",
	}, []string{"stage"})

	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepack_chat_requests_total",
		Help: "LLM chat requests, by provider and status.",
	}, []string{"provider", "status"})
)

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
