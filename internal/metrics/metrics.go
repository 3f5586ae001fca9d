// Package metrics exposes Prometheus counters/gauges for the host and
// device binaries, adapted from the teacher's internal/metrics/metrics.go (CAN-frame
// counters replaced with USB-frame, dispatcher, event-buffer and scenario
// counters).
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/late-mate/late-mate/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UsbRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_rx_frames_total",
		Help: "Total non-empty packets read from the bulk receive endpoint (IN on the host, OUT on the device).",
	})
	UsbTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usb_tx_frames_total",
		Help: "Total framed messages written to the bulk send endpoint (OUT on the host, IN on the device).",
	})
	UsbTransferErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usb_transfer_errors_total",
		Help: "Total bulk endpoint transfer errors by direction.",
	}, []string{"direction"})
	FramerDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framer_decode_errors_total",
		Help: "Total frames rejected by the accumulator (CRC mismatch, malformed COBS, overfull).",
	})
	DispatcherUnroutable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_unroutable_replies_total",
		Help: "Total inbound replies whose request id had no pending receiver.",
	})
	DispatcherPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_pending_requests",
		Help: "Number of outstanding requests at the last reap tick.",
	})
	ScenarioRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scenario_runs_total",
		Help: "Total scenario repeats executed.",
	})
	ScenarioValidationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scenario_validation_rejections_total",
		Help: "Total scenarios rejected by the validator, by rejection kind.",
	}, []string{"kind"})
	ChangepointMissing = promauto.NewCounter(prometheus.CounterOpts{
		Name: "changepoint_missing_total",
		Help: "Total repeats where no optical changepoint was detected.",
	})
	EventBufferFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_buffer_full_total",
		Help: "Total Store calls on the device event buffer that failed (device-reported).",
	})
	HidSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hid_send_failures_total",
		Help: "Total SendHidReport requests that failed at the HID endpoint outside a scenario run.",
	})
	RebootsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reboots_scheduled_total",
		Help: "Total ResetToFirmwareUpdate requests that scheduled a bootloader reboot.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool

	localUsbRx       uint64
	localUsbTx       uint64
	localScenarioRun uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of the local counters, for periodic logging on
// setups without a Prometheus scraper (mirrors the teacher's Snap/Snapshot).
type Snapshot struct {
	UsbRx        uint64
	UsbTx        uint64
	ScenarioRuns uint64
	Errors       uint64
}

// Snap returns the current local counter values.
func Snap() Snapshot {
	return Snapshot{
		UsbRx:        atomic.LoadUint64(&localUsbRx),
		UsbTx:        atomic.LoadUint64(&localUsbTx),
		ScenarioRuns: atomic.LoadUint64(&localScenarioRun),
		Errors:       atomic.LoadUint64(&localErrors),
	}
}

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready, the same shape as the teacher's StartHTTP.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

func IncDispatcherUnroutable()       { DispatcherUnroutable.Inc() }
func SetDispatcherPending(n int)     { DispatcherPending.Set(float64(n)) }
func IncUsbRx() {
	UsbRxFrames.Inc()
	atomic.AddUint64(&localUsbRx, 1)
}
func IncUsbTx() {
	UsbTxFrames.Inc()
	atomic.AddUint64(&localUsbTx, 1)
}
func IncUsbTransferError(dir string) {
	UsbTransferErrors.WithLabelValues(dir).Inc()
	atomic.AddUint64(&localErrors, 1)
}
func IncFramerDecodeError() {
	FramerDecodeErrors.Inc()
	atomic.AddUint64(&localErrors, 1)
}
func IncScenarioRun() {
	ScenarioRuns.Inc()
	atomic.AddUint64(&localScenarioRun, 1)
}
func IncScenarioRejection(kind string) {
	ScenarioValidationRejections.WithLabelValues(kind).Inc()
}
func IncChangepointMissing() { ChangepointMissing.Inc() }
func IncEventBufferFull()    { EventBufferFull.Inc() }
func IncHidSendFailure()     { HidSendFailures.Inc() }
func IncRebootScheduled()    { RebootsScheduled.Inc() }

// InitBuildInfo sets the build info gauge (called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
