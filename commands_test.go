package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSend(t *testing.T) {
	tv := streamingVehicle(t)

	require.NoError(t, tv.SetSpeed(300, 500))
	require.Len(t, tv.write.writes, 1)
	assert.Equal(t, []byte{0x06, 0x24, 0x2c, 0x01, 0xf4, 0x01, 0x00}, tv.write.writes[0])

	require.NoError(t, tv.Stop())
	require.NoError(t, tv.SetOffset(-23))
	require.NoError(t, tv.CancelLaneChange())
	require.NoError(t, tv.SetLights(protocol.LightHeadlights))
	require.NoError(t, tv.SetEngineLight(14, 0, 7))
	require.NoError(t, tv.UTurn())
	require.NoError(t, tv.RequestBattery())
	require.NoError(t, tv.Ping())
	require.NoError(t, tv.RequestVersion())
	require.NoError(t, tv.SetConfig(true, false))

	assert.Equal(t, []protocol.Command{
		protocol.SetSpeed{Speed: 300, Accel: 500},
		protocol.SetSpeed{Speed: 0, Accel: 12500},
		protocol.ChangeOffsetRelative{OffsetMm: -23},
		protocol.CancelOffsetChange{},
		protocol.SetLights{Mask: protocol.LightHeadlights},
		protocol.SetEngineLight{R: 14, G: 0, B: 7},
		protocol.UTurn{},
		protocol.RequestBattery{},
		protocol.Ping{},
		protocol.RequestVersion{},
		protocol.SetConfig{Plastic: true, Supercode: false},
	}, tv.write.commands(t))
}

func TestSendNotReady(t *testing.T) {
	tv := newTestVehicle(testConfig())
	assert.ErrorIs(t, tv.Ping(), ErrTransportNotReady)

	require.NoError(t, tv.Connect())
	require.NoError(t, tv.HandleConnected())
	assert.ErrorIs(t, tv.SetSpeed(300, 500), ErrTransportNotReady)
	assert.Empty(t, tv.write.writes)
}

func TestSendWriteFailed(t *testing.T) {
	tv := streamingVehicle(t)
	tv.write.writeErr = errors.New("gatt error")
	err := tv.Ping()
	assert.ErrorIs(t, err, ErrCommandWriteFailed)
	assert.Contains(t, err.Error(), "gatt error")
	// the vehicle stays connected
	assert.Equal(t, Streaming, tv.Lifecycle())
}

func TestSendInvalid(t *testing.T) {
	tv := streamingVehicle(t)
	assert.ErrorIs(t, tv.SetEngineLight(15, 0, 0), protocol.ErrInvalidCommand)
	assert.ErrorIs(t, tv.Send(nil), protocol.ErrInvalidCommand)
	assert.Empty(t, tv.write.writes)
}

func TestSendAsync(t *testing.T) {
	tv := streamingVehicle(t)
	assert.NoError(t, <-tv.SendAsync(protocol.Ping{}))
	assert.Equal(t, []protocol.Command{protocol.Ping{}}, tv.write.commands(t))

	tv.HandleDisconnected()
	done := tv.SendAsync(protocol.Ping{})
	assert.ErrorIs(t, <-done, ErrTransportNotReady)
	_, ok := <-done
	assert.False(t, ok)
}

func TestChangeLane(t *testing.T) {
	tv := streamingVehicle(t)
	tv.HandleNotification([]byte{0x10, 0x27, 30, 17, 0, 0, 0xb8, 0x41, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Equal(t, float32(23), tv.State().Offset)

	require.NoError(t, tv.ChangeLane(true))
	require.NoError(t, tv.ChangeLane(false))
	assert.Equal(t, []protocol.Command{
		protocol.ChangeOffsetRelative{OffsetMm: 32},
		protocol.ChangeOffsetRelative{OffsetMm: 14},
	}, tv.write.commands(t))
}

func TestSetLane(t *testing.T) {
	tv := streamingVehicle(t)
	assert.ErrorIs(t, tv.SetLane(), ErrInsufficientHistory)

	tv.HandleNotification(positionFrame(5, 17))
	tv.HandleNotification(positionFrame(4, 17))
	require.NoError(t, tv.SetLane())
	assert.Equal(t, []protocol.Command{protocol.SetAbsoluteOffset{OffsetMm: 59}}, tv.write.commands(t))
}
