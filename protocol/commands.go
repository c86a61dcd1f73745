package protocol

import (
	"encoding/binary"
	"github.com/pkg/errors"
	"math"
)

const (
	laneChangeSpeed = 250  // mm/s
	laneChangeAccel = 1000 // mm/s^2

	stopAccel = 12500 // mm/s^2

	turnUTurn            = 3
	turnTriggerImmediate = 0

	sdkModeOn                   = 1
	sdkOptionOverrideLocalizing = 0x1

	trackMaterialPlastic = 0
	trackMaterialVinyl   = 1
	supercodeNone        = 0
	supercodeAll         = 1

	lightChannelRed   = 0
	lightChannelBlue  = 2
	lightChannelGreen = 3
	lightEffectSteady = 0
)

// bits of the SetLights mask
const (
	LightHeadlights  uint8 = 0
	LightBrakelights uint8 = 1
	LightFrontlights uint8 = 2
	LightEngine      uint8 = 3
)

// Command is a controller to vehicle message.
type Command interface {
	ID() MessageID
	payload() ([]byte, error)
}

type SetSpeed struct {
	Speed int16 // mm/s
	Accel int16 // mm/s^2
}

// SetAbsoluteOffset tells the vehicle where it is relative to the road
// center. It is used to give the vehicle a lane reference.
type SetAbsoluteOffset struct {
	OffsetMm float32
}

// ChangeOffsetRelative moves the vehicle to a new offset from the road
// center at a fixed horizontal speed.
type ChangeOffsetRelative struct {
	OffsetMm float32
}

type CancelOffsetChange struct{}

type SetLights struct {
	Mask uint8
}

// SetEngineLight sets the RGB engine light to a steady color. Each channel
// accepts 0 to MaxLightIntensity.
type SetEngineLight struct {
	R, G, B uint8
}

type RequestBattery struct{}

type Disconnect struct{}

type UTurn struct{}

type ActivateSdkMode struct{}

type Ping struct{}

type RequestVersion struct{}

type SetConfig struct {
	Plastic   bool
	Supercode bool
}

// Stop brings the vehicle to a halt.
func Stop() SetSpeed {
	return SetSpeed{Speed: 0, Accel: stopAccel}
}

func (SetSpeed) ID() MessageID             { return IDSetSpeed }
func (SetAbsoluteOffset) ID() MessageID    { return IDSetOffsetFromCenter }
func (ChangeOffsetRelative) ID() MessageID { return IDChangeLane }
func (CancelOffsetChange) ID() MessageID   { return IDCancelLaneChange }
func (SetLights) ID() MessageID            { return IDSetLights }
func (SetEngineLight) ID() MessageID       { return IDLightsPattern }
func (RequestBattery) ID() MessageID       { return IDBatteryLevelRequest }
func (Disconnect) ID() MessageID           { return IDDisconnect }
func (UTurn) ID() MessageID                { return IDTurn }
func (ActivateSdkMode) ID() MessageID      { return IDSDKMode }
func (Ping) ID() MessageID                 { return IDPingRequest }
func (RequestVersion) ID() MessageID       { return IDVersionRequest }
func (SetConfig) ID() MessageID            { return IDSetConfigParams }

func (c SetSpeed) payload() ([]byte, error) {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(c.Speed))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(c.Accel))
	// respect road piece speed limit
	buf[4] = 0
	return buf, nil
}

func (c SetAbsoluteOffset) payload() ([]byte, error) {
	if err := checkFinite(c.OffsetMm); err != nil {
		return nil, err
	}
	buf := make([]byte, 4)
	putF32(buf, 0, c.OffsetMm)
	return buf, nil
}

func (c ChangeOffsetRelative) payload() ([]byte, error) {
	if err := checkFinite(c.OffsetMm); err != nil {
		return nil, err
	}
	buf := make([]byte, 10)
	binary.LittleEndian.PutUint16(buf[0:2], laneChangeSpeed)
	binary.LittleEndian.PutUint16(buf[2:4], laneChangeAccel)
	putF32(buf, 4, c.OffsetMm)
	// hop intent and tag stay zero
	return buf, nil
}

func (CancelOffsetChange) payload() ([]byte, error) { return nil, nil }

func (c SetLights) payload() ([]byte, error) {
	return []byte{c.Mask}, nil
}

func (c SetEngineLight) payload() ([]byte, error) {
	for _, v := range []uint8{c.R, c.G, c.B} {
		if v > MaxLightIntensity {
			return nil, errors.Wrapf(ErrInvalidCommand, "light intensity %d above %d", v, MaxLightIntensity)
		}
	}
	buf := []byte{3}
	for _, ch := range []struct {
		channel uint8
		value   uint8
	}{
		{lightChannelRed, c.R},
		{lightChannelGreen, c.G},
		{lightChannelBlue, c.B},
	} {
		// channel, effect, start, end, cycles per 10 seconds
		buf = append(buf, ch.channel, lightEffectSteady, ch.value, ch.value, 0)
	}
	return buf, nil
}

func (RequestBattery) payload() ([]byte, error) { return nil, nil }
func (Disconnect) payload() ([]byte, error)     { return nil, nil }
func (Ping) payload() ([]byte, error)           { return nil, nil }
func (RequestVersion) payload() ([]byte, error) { return nil, nil }

func (UTurn) payload() ([]byte, error) {
	return []byte{turnUTurn, turnTriggerImmediate}, nil
}

func (ActivateSdkMode) payload() ([]byte, error) {
	return []byte{sdkModeOn, sdkOptionOverrideLocalizing}, nil
}

func (c SetConfig) payload() ([]byte, error) {
	supercode := uint8(supercodeNone)
	if c.Supercode {
		supercode = supercodeAll
	}
	material := uint8(trackMaterialVinyl)
	if c.Plastic {
		material = trackMaterialPlastic
	}
	return []byte{supercode, material}, nil
}

// Encode builds the frame written to the vehicle's write characteristic.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.Wrap(ErrInvalidCommand, "nil command")
	}
	p, err := cmd.payload()
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, minFrameSize+len(p))
	frame = append(frame, uint8(1+len(p)), uint8(cmd.ID()))
	return append(frame, p...), nil
}

// DecodeCommand is the inverse of Encode. Vehicle-side code, like the
// simulator, uses it to interpret what a controller wrote.
func DecodeCommand(frame []byte) (Command, error) {
	if len(frame) < minFrameSize {
		return nil, errors.Wrapf(ErrMalformedFrame, "command of %d bytes has no id", len(frame))
	}
	need := func(n int) error {
		if len(frame) < n {
			return errors.Wrapf(ErrMalformedFrame, "command 0x%02x needs %d bytes, got %d", frame[offsetID], n, len(frame))
		}
		return nil
	}

	switch MessageID(frame[offsetID]) {
	case IDSetSpeed:
		if err := need(7); err != nil {
			return nil, err
		}
		return SetSpeed{
			Speed: int16(u16(frame, 2)),
			Accel: int16(u16(frame, 4)),
		}, nil
	case IDSetOffsetFromCenter:
		if err := need(6); err != nil {
			return nil, err
		}
		return SetAbsoluteOffset{OffsetMm: f32(frame, 2)}, nil
	case IDChangeLane:
		if err := need(12); err != nil {
			return nil, err
		}
		return ChangeOffsetRelative{OffsetMm: f32(frame, 6)}, nil
	case IDCancelLaneChange:
		return CancelOffsetChange{}, nil
	case IDSetLights:
		if err := need(3); err != nil {
			return nil, err
		}
		return SetLights{Mask: frame[2]}, nil
	case IDLightsPattern:
		if err := need(18); err != nil {
			return nil, err
		}
		c := SetEngineLight{}
		for i := 0; i < 3; i++ {
			base := 3 + i*5
			switch frame[base] {
			case lightChannelRed:
				c.R = frame[base+2]
			case lightChannelGreen:
				c.G = frame[base+2]
			case lightChannelBlue:
				c.B = frame[base+2]
			}
		}
		return c, nil
	case IDBatteryLevelRequest:
		return RequestBattery{}, nil
	case IDDisconnect:
		return Disconnect{}, nil
	case IDTurn:
		return UTurn{}, nil
	case IDSDKMode:
		return ActivateSdkMode{}, nil
	case IDPingRequest:
		return Ping{}, nil
	case IDVersionRequest:
		return RequestVersion{}, nil
	case IDSetConfigParams:
		if err := need(4); err != nil {
			return nil, err
		}
		return SetConfig{
			Supercode: frame[2] == supercodeAll,
			Plastic:   frame[3] == trackMaterialPlastic,
		}, nil
	}
	return nil, errors.Wrapf(ErrInvalidCommand, "unknown command id 0x%02x", frame[offsetID])
}

func checkFinite(v float32) error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Wrapf(ErrInvalidCommand, "offset %v is not finite", v)
	}
	return nil
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
}
