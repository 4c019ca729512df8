// Prometheus collectors shared by the ISO-TP engine and the session worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CanFramesTx = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "godiag_can_frames_tx_total",
		Help: "CAN frames written to the bus",
	})
	CanFramesRx = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "godiag_can_frames_rx_total",
		Help: "CAN frames read from the bus",
	})
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godiag_requests_total",
		Help: "Diagnostic requests sent, by protocol",
	}, []string{"protocol"})
	NegativeResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godiag_negative_responses_total",
		Help: "Negative responses received from ECUs, by protocol",
	}, []string{"protocol"})
	ChannelErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "godiag_channel_errors_total",
		Help: "Transport level errors observed by the session worker",
	})
	TesterPresent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "godiag_tester_present_total",
		Help: "Tester present keepalive messages sent",
	})
)

// Register adds all godiag collectors to the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(CanFramesTx, CanFramesRx, Requests, NegativeResponses, ChannelErrors, TesterPresent)
}
