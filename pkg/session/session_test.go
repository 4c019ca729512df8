package session_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	godiag "github.com/samsamfire/godiag"
	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/kwp2000"
	"github.com/samsamfire/godiag/pkg/obd2"
	"github.com/samsamfire/godiag/pkg/protocol"
	"github.com/samsamfire/godiag/pkg/session"
	"github.com/samsamfire/godiag/pkg/uds"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func basicOpts() session.BasicOptions {
	return session.BasicOptions{
		SendID: 0x7E0,
		RecvID: 0x7E8,
		Timeouts: session.TimeoutConfig{
			ReadTimeoutMs:  500,
			WriteTimeoutMs: 500,
		},
	}
}

func open(t *testing.T, proto protocol.Protocol, ecu *simEcu, advanced *session.AdvancedOptions) *session.Session {
	t.Helper()
	sess, err := session.New(proto, ecu, channel.DefaultIsoTpSettings(), basicOpts(), advanced, testLogger())
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

// positiveResponse echoes the request sid + 0x40 with the given payload.
func positiveResponse(req []byte, data ...byte) []byte {
	return append([]byte{req[0] + 0x40}, data...)
}

func TestSendWithResponse(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		if req[0] == uds.SidReadDataByIdentifier {
			return [][]byte{{0x62, req[1], req[2], 'W', '0', 'L'}}
		}
		return [][]byte{{0x7F, req[0], 0x11}}
	})
	sess := open(t, uds.New(), ecu, nil)

	resp, err := sess.SendCommandWithResponse(uds.SidReadDataByIdentifier, 0xF1, 0x90)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1, 0x90, 'W', '0', 'L'}, resp)
	assert.True(t, sess.IsEcuConnected())
}

func TestSendWithoutResponse(t *testing.T) {
	responded := atomic.Bool{}
	ecu := newSimEcu(func(req []byte) [][]byte {
		responded.Store(true)
		return nil
	})
	sess := open(t, uds.New(), ecu, nil)
	require.NoError(t, sess.SendCommand(uds.SidEcuReset, 0x01))
	assert.True(t, responded.Load())
	assert.Equal(t, 1, ecu.WriteCount())
}

// The ECU answers response pending several times before the real response.
// Exactly one request goes onto the wire, the caller sees exactly one
// positive response, the waiting hook fires per busy answer.
func TestBusyThenSuccess(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{
			{0x7F, req[0], 0x78},
			{0x7F, req[0], 0x78},
			{0x7F, req[0], 0x78},
			positiveResponse(req, 0xF1, 0x90, 'W', '0', 'L', '0'),
		}
	})
	sess := open(t, uds.New(), ecu, nil)
	var waits atomic.Int32
	sess.OnWaiting(func() { waits.Add(1) })

	resp, err := sess.SendBytesWithResponse([]byte{0x22, 0xF1, 0x90})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1, 0x90, 'W', '0', 'L', '0'}, resp)
	assert.Equal(t, 1, ecu.WriteCount())
	assert.Equal(t, int32(3), waits.Load())
}

// A non recoverable NRC surfaces as an EcuError with its description.
func TestNegativeResponseSurfaces(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{{0x7F, req[0], 0x33}}
	})
	sess := open(t, uds.New(), ecu, nil)

	_, err := sess.SendBytesWithResponse([]byte{0x27, 0x01})
	var ecuErr *godiag.EcuError
	require.ErrorAs(t, err, &ecuErr)
	assert.Equal(t, uint8(0x33), ecuErr.Code)
	assert.Equal(t, "SecurityAccessDenied", ecuErr.Description)
}

// BusyRepeatRequest retransmits the original request after the cooldown.
func TestRepeatRequest(t *testing.T) {
	var calls atomic.Int32
	ecu := newSimEcu(func(req []byte) [][]byte {
		if calls.Add(1) == 1 {
			return [][]byte{{0x7F, req[0], 0x21}}
		}
		return [][]byte{positiveResponse(req, 0x01)}
	})
	sess := open(t, uds.New(), ecu, &session.AdvancedOptions{
		TesterPresentIntervalMs: 60_000,
		CommandCooldownMs:       50,
	})

	start := time.Now()
	resp, err := sess.SendBytesWithResponse([]byte{0x31, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x71, 0x01}, resp)
	assert.Equal(t, 2, ecu.WriteCount())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// The tracked session mode only advances after a positive response to the
// session change request.
func TestSessionChangeTracking(t *testing.T) {
	accept := atomic.Bool{}
	ecu := newSimEcu(func(req []byte) [][]byte {
		if req[0] == kwp2000.SidStartDiagnosticSession {
			if accept.Load() {
				return [][]byte{{0x50, req[1]}}
			}
			return [][]byte{{0x7F, req[0], 0x22}}
		}
		return [][]byte{positiveResponse(req)}
	})
	sess := open(t, kwp2000.New(), ecu, nil)

	mode, ok := sess.CurrentMode()
	require.True(t, ok)
	assert.Equal(t, kwp2000.SessionNormal, mode.ID)

	// Rejected change leaves the tracked mode untouched
	_, err := sess.SendBytesWithResponse([]byte{0x10, 0x92})
	require.Error(t, err)
	mode, _ = sess.CurrentMode()
	assert.Equal(t, kwp2000.SessionNormal, mode.ID)

	// Accepted change updates it
	accept.Store(true)
	resp, err := sess.SendBytesWithResponse([]byte{0x10, 0x92})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x50, 0x92}, resp)
	mode, ok = sess.CurrentMode()
	require.True(t, ok)
	assert.Equal(t, kwp2000.SessionExtendedDiagnostics, mode.ID)
	assert.Equal(t, "ExtendedDiagnostics", mode.Name)
	assert.True(t, mode.TesterPresentRequired)
}

// After entering a mode that requires it, the keepalive goes out within the
// configured interval.
func TestTesterPresentLiveness(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		switch req[0] {
		case kwp2000.SidStartDiagnosticSession:
			return [][]byte{{0x50, req[1]}}
		case kwp2000.SidTesterPresent:
			return [][]byte{{0x7E}}
		}
		return [][]byte{positiveResponse(req)}
	})
	sess := open(t, kwp2000.New(), ecu, &session.AdvancedOptions{
		TesterPresentIntervalMs:      150,
		TesterPresentRequireResponse: false,
	})

	_, err := sess.SendBytesWithResponse([]byte{0x10, 0x92})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, w := range ecu.Writes() {
			if bytes.Equal(w, []byte{0x3E, 0x80}) {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "no tester present observed")
}

// A failing keepalive reverts the tracked mode to the protocol default.
func TestTesterPresentFailureRevertsMode(t *testing.T) {
	lost := atomic.Bool{}
	ecu := newSimEcu(func(req []byte) [][]byte {
		if lost.Load() {
			return nil // ECU stops answering
		}
		if req[0] == kwp2000.SidStartDiagnosticSession {
			return [][]byte{{0x50, req[1]}}
		}
		return [][]byte{{0x7E}}
	})
	sess := open(t, kwp2000.New(), ecu, &session.AdvancedOptions{
		TesterPresentIntervalMs:      150,
		TesterPresentRequireResponse: true,
	})

	_, err := sess.SendBytesWithResponse([]byte{0x10, 0x92})
	require.NoError(t, err)
	lost.Store(true)

	assert.Eventually(t, func() bool {
		mode, ok := sess.CurrentMode()
		return ok && mode.ID == kwp2000.SessionNormal
	}, 5*time.Second, 50*time.Millisecond, "mode did not revert")
}

// Channel failures surface as ChannelError and clear the connection flag.
func TestConnectionLoss(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{positiveResponse(req)}
	})
	sess := open(t, uds.New(), ecu, nil)

	_, err := sess.SendBytesWithResponse([]byte{0x3E, 0x00})
	require.NoError(t, err)
	require.True(t, sess.IsEcuConnected())

	ecu.Unplug()
	_, err = sess.SendBytesWithResponse([]byte{0x3E, 0x00})
	var chanErr *godiag.ChannelError
	require.ErrorAs(t, err, &chanErr)
	assert.False(t, sess.IsEcuConnected())
}

// OBD-II sessions have no mode and never emit keepalives.
func TestObd2HasNoSessionControl(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{positiveResponse(req, 0x02, 0x01)}
	})
	// Advanced options are accepted but ignored with a warning
	sess := open(t, obd2.New(), ecu, &session.AdvancedOptions{TesterPresentIntervalMs: 50})

	_, ok := sess.CurrentMode()
	assert.False(t, ok)
	_, err := sess.SendCommandWithResponse(obd2.SidRequestVehicleInfo, obd2.InfoVin)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	for _, w := range ecu.Writes() {
		assert.NotEqual(t, uint8(0x3E), w[0], "unexpected tester present on OBD2")
	}
}

func TestCloseShutsDownWorker(t *testing.T) {
	ecu := newSimEcu(nil)
	sess := open(t, uds.New(), ecu, nil)
	sess.Close()
	assert.False(t, sess.IsRunning())
	assert.True(t, ecu.Closed())
	err := sess.SendBytes([]byte{0x3E, 0x00})
	assert.ErrorIs(t, err, godiag.ErrServerNotRunning)
}

// An empty positive answer from the transport surfaces as EmptyResponse.
func TestEmptyResponse(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{{}}
	})
	sess := open(t, uds.New(), ecu, nil)
	_, err := sess.SendBytesWithResponse([]byte{0x22, 0xF1, 0x90})
	assert.ErrorIs(t, err, godiag.ErrEmptyResponse)
}

func TestSendCompleteHook(t *testing.T) {
	ecu := newSimEcu(func(req []byte) [][]byte {
		return [][]byte{positiveResponse(req)}
	})
	sess := open(t, uds.New(), ecu, nil)
	var fired atomic.Bool
	sess.OnSendComplete(func() { fired.Store(true) })
	_, err := sess.SendBytesWithResponse([]byte{0x3E, 0x00})
	require.NoError(t, err)
	assert.True(t, fired.Load())
}

// Global session control sends the change to the functional address without
// awaiting a response, and still tracks the new mode.
func TestGlobalSessionControl(t *testing.T) {
	ecu := newSimEcu(nil)
	ext := uint8(0x10)
	sess := open(t, uds.New(), ecu, &session.AdvancedOptions{
		GlobalTpID:              0x7DF,
		GlobalSessionControl:    true,
		TesterPresentIntervalMs: 60_000,
		TpExtID:                 &ext,
	})

	resp, err := sess.SendBytesWithResponse([]byte{0x10, 0x03})
	require.NoError(t, err)
	assert.Empty(t, resp)
	mode, ok := sess.CurrentMode()
	require.True(t, ok)
	assert.Equal(t, uds.SessionExtended, mode.ID)
	require.Equal(t, 1, ecu.WriteCount())
}

func TestErrorKinds(t *testing.T) {
	t.Run("ecu error formats code and description", func(t *testing.T) {
		err := &godiag.EcuError{Code: 0x33, Description: "SecurityAccessDenied"}
		assert.Contains(t, err.Error(), "0x33")
		assert.Contains(t, err.Error(), "SecurityAccessDenied")
	})
	t.Run("channel error unwraps", func(t *testing.T) {
		err := &godiag.ChannelError{Err: channel.ErrReadTimeout}
		assert.True(t, errors.Is(err, channel.ErrReadTimeout))
	})
}
