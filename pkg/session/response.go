package session

import "github.com/samsamfire/godiag/pkg/protocol"

// One outbound request as queued to the worker
type txPayload struct {
	payload          []byte
	responseRequired bool
}

type responseKind uint8

const (
	// Result of the write leg, carries err on failure
	kindSendState responseKind = iota
	// Positive ECU response, carries data
	kindEcuResponse
	// Negative ECU response, carries nrc
	kindEcuNegative
	// ECU answered response pending, the worker keeps polling
	kindEcuBusy
	// Channel failure while waiting for the response, carries err
	kindRecvError
)

// serverResponse multiplexes every worker outcome onto one stream. Ordering
// is guaranteed by the worker: the send state always precedes the terminal
// response.
type serverResponse struct {
	kind responseKind
	data []byte
	nrc  *protocol.NegativeResponse
	err  error
}

func (r serverResponse) terminal() bool {
	return r.kind != kindEcuBusy
}
