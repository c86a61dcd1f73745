package protocol

import (
	"encoding/binary"
	"github.com/pkg/errors"
	"strings"
)

const (
	manufacturerDataSize = 8
	localNameNameOffset  = 7
)

var vehicleNames = map[uint32]string{
	0x0800efbe: "Ground Shock",
	0x0900efbe: "Skull",
	0x0a00efbe: "Thermo",
	0x0b00efbe: "Nuke",
	0x0c00efbe: "Guardian",
	0x0e00efbe: "Big Bang",
	0x0f00efbe: "Free Wheel",
	0x1000efbe: "x52",
	0x1100efbe: "X52 Ice",
	0x1300efbe: "Ice Charger",
}

// VehicleIdentity is the hardware information a vehicle advertises in the
// manufacturer data record.
type VehicleIdentity struct {
	Identifier uint32
	ModelID    uint8
	ProductID  uint16
	// Name is empty when the identifier is not a known model.
	Name string
}

// DisplayName returns the model name, or "unknown".
func (id VehicleIdentity) DisplayName() string {
	if id.Name == "" {
		return "unknown"
	}
	return id.Name
}

// DecodeIdentity reads the manufacturer data record of an advertisement.
// When the identifier is not in the model table it returns the identity with
// every other field populated together with ErrUnknownVehicleModel.
func DecodeIdentity(manufacturerData []byte) (VehicleIdentity, error) {
	if len(manufacturerData) < manufacturerDataSize {
		return VehicleIdentity{}, errors.Wrapf(ErrMalformedFrame,
			"manufacturer data needs %d bytes, got %d", manufacturerDataSize, len(manufacturerData))
	}
	id := VehicleIdentity{
		Identifier: binary.LittleEndian.Uint32(manufacturerData[0:4]),
		// the model id shares its byte with the identifier
		ModelID:   manufacturerData[0],
		ProductID: binary.LittleEndian.Uint16(manufacturerData[6:8]),
	}
	name, ok := vehicleNames[id.Identifier]
	if !ok {
		return id, errors.Wrapf(ErrUnknownVehicleModel, "identifier 0x%08x", id.Identifier)
	}
	id.Name = name
	return id, nil
}

// DecodeLocalName reads the firmware version and the user defined name from
// the local name record of an advertisement.
func DecodeLocalName(localName []byte) (firmware uint16, name string, err error) {
	if len(localName) < 2 {
		return 0, "", errors.Wrapf(ErrMalformedFrame, "local name needs 2 bytes, got %d", len(localName))
	}
	firmware = binary.LittleEndian.Uint16(localName[0:2])
	if len(localName) > localNameNameOffset {
		name = strings.TrimRight(string(localName[localNameNameOffset:]), "\x00")
	}
	return firmware, name, nil
}
