package protocol

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"set speed", SetSpeed{Speed: 300, Accel: 500}, []byte{0x06, 0x24, 0x2c, 0x01, 0xf4, 0x01, 0x00}},
		{"negative speed", SetSpeed{Speed: -1, Accel: 0}, []byte{0x06, 0x24, 0xff, 0xff, 0x00, 0x00, 0x00}},
		{"stop", Stop(), []byte{0x06, 0x24, 0x00, 0x00, 0xd4, 0x30, 0x00}},
		{"absolute offset", SetAbsoluteOffset{OffsetMm: 1.0}, []byte{0x05, 0x2c, 0x00, 0x00, 0x80, 0x3f}},
		{"change offset", ChangeOffsetRelative{OffsetMm: -23}, []byte{0x0b, 0x25, 0xfa, 0x00, 0xe8, 0x03,
			0x00, 0x00, 0xb8, 0xc1, 0x00, 0x00}},
		{"cancel offset change", CancelOffsetChange{}, []byte{0x01, 0x26}},
		{"lights", SetLights{Mask: 0x44}, []byte{0x02, 0x1d, 0x44}},
		{"engine light", SetEngineLight{R: 14, G: 7, B: 1}, []byte{0x11, 0x33, 0x03,
			0x00, 0x00, 0x0e, 0x0e, 0x00,
			0x03, 0x00, 0x07, 0x07, 0x00,
			0x02, 0x00, 0x01, 0x01, 0x00}},
		{"battery", RequestBattery{}, []byte{0x01, 0x1a}},
		{"disconnect", Disconnect{}, []byte{0x01, 0x0d}},
		{"u-turn", UTurn{}, []byte{0x03, 0x32, 0x03, 0x00}},
		{"sdk mode", ActivateSdkMode{}, []byte{0x03, 0x90, 0x01, 0x01}},
		{"ping", Ping{}, []byte{0x01, 0x16}},
		{"version", RequestVersion{}, []byte{0x01, 0x18}},
		{"config plastic supercode", SetConfig{Plastic: true, Supercode: true}, []byte{0x03, 0x45, 0x01, 0x00}},
		{"config vinyl", SetConfig{}, []byte{0x03, 0x45, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame)
			assert.Equal(t, len(frame)-1, int(frame[0]), "length byte")
			assert.Equal(t, uint8(tt.cmd.ID()), frame[1])

			decoded, err := DecodeCommand(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, decoded)
		})
	}
}

func TestEncodeInvalid(t *testing.T) {
	for _, cmd := range []Command{
		nil,
		SetAbsoluteOffset{OffsetMm: float32(math.NaN())},
		ChangeOffsetRelative{OffsetMm: float32(math.Inf(1))},
		SetEngineLight{R: MaxLightIntensity + 1},
		SetEngineLight{B: 255},
	} {
		_, err := Encode(cmd)
		assert.Equal(t, ErrInvalidCommand, errors.Cause(err), "%#v", cmd)
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	_, err := DecodeCommand([]byte{0x01})
	assert.Equal(t, ErrMalformedFrame, errors.Cause(err))

	_, err = DecodeCommand([]byte{0x03, 0x24, 0x2c, 0x01})
	assert.Equal(t, ErrMalformedFrame, errors.Cause(err))

	_, err = DecodeCommand([]byte{0x01, 0x17})
	assert.Equal(t, ErrInvalidCommand, errors.Cause(err))
}
