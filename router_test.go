package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func fixedTime(t time.Time) func() {
	origTimeNow := timeNow
	timeNow = func() time.Time {
		return t
	}
	return func() {
		timeNow = origTimeNow
	}
}

func positionFrame(pos, piece uint8) []byte {
	return []byte{0x10, 0x27, pos, piece, 0, 0, 0, 0, 0xf4, 0x01, 0, 0, 0, 0, 0, 0, 0}
}

func TestRouteStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)
	defer fixedTime(now)()
	tv := streamingVehicle(t)

	tv.HandleNotification([]byte{0x03, 0x1b, 0x50, 0x0f})
	require.Len(t, tv.sink.names(), 1)
	status, ok := tv.sink.last().(CarStatus)
	require.True(t, ok)
	assert.Equal(t, tv.Device(), status.Device)
	assert.Equal(t, 93, status.State.BatteryLevel)
	assert.Equal(t, now, status.State.LastUpdate)
	assert.Equal(t, tv.State(), status.State)
}

func TestRouteEvent(t *testing.T) {
	tv := streamingVehicle(t)

	tv.HandleNotification([]byte{0x01, 0x17})
	assert.Equal(t, CarEvent{Device: tv.Device(), Message: protocol.PingResponse{}}, tv.sink.last())

	tv.HandleNotification([]byte{0x03, 0x36, 0x01, 0x02})
	assert.Equal(t, CarEvent{
		Device:  tv.Device(),
		Message: protocol.ReservedMessage{MessageID: 0x36, Payload: []byte{0x01, 0x02}},
	}, tv.sink.last())

	tv.HandleNotification([]byte{0x02, 0xee, 0x05})
	assert.Equal(t, CarEvent{
		Device:  tv.Device(),
		Message: protocol.UnknownMessage{MessageID: 0xee, Payload: []byte{0x05}},
	}, tv.sink.last())
	assert.Equal(t, VehicleState{FirmwareVersion: 0x2676}, tv.State())
}

func TestRouteMalformed(t *testing.T) {
	tv := streamingVehicle(t)
	tv.HandleNotification([]byte{0x01})
	tv.HandleNotification([]byte{0x03, 0x27, 0x01, 0x02})
	assert.Empty(t, tv.sink.names())
}

func TestRouteTelemetry(t *testing.T) {
	tv := streamingVehicle(t)
	_, updates := tv.telemetry.Subscribe()

	tv.HandleNotification(positionFrame(30, 17))
	msg := <-updates
	assert.Equal(t, uint8(30), msg.(protocol.PositionUpdate).LocationID)
	// position updates are telemetry and status
	assert.IsType(t, CarStatus{}, tv.sink.last())

	transition := make([]byte, 18)
	transition[0], transition[1], transition[2] = 0x11, 0x29, 0x02
	tv.HandleNotification(transition)
	msg = <-updates
	assert.Equal(t, int8(2), msg.(protocol.TransitionUpdate).RoadPieceIdx)
	assert.IsType(t, CarEvent{}, tv.sink.last())
}

func TestRouteSuppressed(t *testing.T) {
	tv := streamingVehicle(t)
	tv.suppressed.Store(true)

	tv.HandleNotification(positionFrame(30, 17))
	tv.HandleNotification([]byte{0x01, 0x17})
	assert.Empty(t, tv.sink.names())
	assert.Equal(t, TrackPosition{PieceID: 17, Pos: 30, Known: true}, tv.State().Current)
}

func TestRouteDisconnected(t *testing.T) {
	tv := newTestVehicle(testConfig())
	tv.HandleNotification([]byte{0x03, 0x1b, 0x50, 0x0f})
	assert.Empty(t, tv.sink.names())
	assert.Equal(t, 0, tv.State().BatteryLevel)
}

func TestRouteReferenceOffset(t *testing.T) {
	tv := streamingVehicle(t)

	tv.HandleNotification(positionFrame(30, 39))
	assert.Empty(t, tv.write.commands(t))
	tv.HandleNotification(positionFrame(31, 39))
	assert.Equal(t, []protocol.Command{protocol.SetAbsoluteOffset{OffsetMm: 23}}, tv.write.commands(t))

	state := tv.State()
	assert.True(t, state.ReferenceOffsetInitialized)
	assert.Equal(t, float32(23), state.ReferenceOffset)

	tv.HandleNotification(positionFrame(32, 39))
	assert.Len(t, tv.write.commands(t), 1)
}

func TestRouteReferenceOffsetReentrant(t *testing.T) {
	tv := streamingVehicle(t)
	tv.write.onWrite = func([]byte) {
		_ = tv.State()
		tv.HandleNotification(positionFrame(32, 39))
	}

	withinTimeout(t, func() {
		tv.HandleNotification(positionFrame(30, 39))
		tv.HandleNotification(positionFrame(31, 39))
	})
	assert.Equal(t, []protocol.Command{protocol.SetAbsoluteOffset{OffsetMm: 23}}, tv.write.commands(t))
	state := tv.State()
	assert.True(t, state.ReferenceOffsetInitialized)
	assert.Equal(t, float32(23), state.ReferenceOffset)
	assert.Equal(t, TrackPosition{PieceID: 39, Pos: 32, Known: true}, state.Current)
}

func TestRouteReferenceOffsetWriteFailure(t *testing.T) {
	tv := streamingVehicle(t)
	tv.write.writeErr = errors.New("gatt error")

	tv.HandleNotification(positionFrame(30, 36))
	tv.HandleNotification(positionFrame(31, 36))
	assert.False(t, tv.State().ReferenceOffsetInitialized)

	// the next position on a reference track tries again
	tv.write.writeErr = nil
	tv.HandleNotification(positionFrame(32, 36))
	assert.Equal(t, []protocol.Command{protocol.SetAbsoluteOffset{OffsetMm: 23}}, tv.write.commands(t))
	assert.True(t, tv.State().ReferenceOffsetInitialized)
}
