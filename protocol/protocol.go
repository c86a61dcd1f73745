// Package protocol decodes and encodes the packed frames exchanged with a
// vehicle over its BLE characteristics.
//
// Every frame starts with a length byte that excludes itself, followed by a
// message id and the payload. Multi-byte integers are little-endian and
// distances are IEEE-754 single precision floats.
package protocol

import (
	"strings"
)

type MessageID uint8

// vehicle to controller
const (
	IDPingResponse               MessageID = 0x17
	IDVersionResponse            MessageID = 0x19
	IDBatteryLevelResponse       MessageID = 0x1b
	IDPositionUpdate             MessageID = 0x27
	IDTransitionUpdate           MessageID = 0x29
	IDIntersectionUpdate         MessageID = 0x2a
	IDVehicleDelocalized         MessageID = 0x2b
	IDOffsetFromRoadCenterUpdate MessageID = 0x2d
	IDLoadingStatusUpdate        MessageID = 0x3f
	IDUndocumentedOffsetUpdate   MessageID = 0x41

	// seen on the wire, meaning unknown
	IDReserved1 MessageID = 0x36
	IDReserved2 MessageID = 0x43
	IDReserved3 MessageID = 0x4d
	IDReserved4 MessageID = 0x86
	IDReserved5 MessageID = 0xc9
)

// controller to vehicle
const (
	IDDisconnect          MessageID = 0x0d
	IDPingRequest         MessageID = 0x16
	IDVersionRequest      MessageID = 0x18
	IDBatteryLevelRequest MessageID = 0x1a
	IDSetLights           MessageID = 0x1d
	IDSetSpeed            MessageID = 0x24
	IDChangeLane          MessageID = 0x25
	IDCancelLaneChange    MessageID = 0x26
	IDSetOffsetFromCenter MessageID = 0x2c
	IDTurn                MessageID = 0x32
	IDLightsPattern       MessageID = 0x33
	IDSetConfigParams     MessageID = 0x45
	IDSDKMode             MessageID = 0x90
)

const (
	ServiceUUID             = "be15beef6186407e83810bd89c4d8df4"
	ReadCharacteristicUUID  = "be15bee06186407e83810bd89c4d8df4"
	WriteCharacteristicUUID = "be15bee16186407e83810bd89c4d8df4"
)

const (
	// MaxBatteryLevel is the raw battery reading treated as 100%.
	MaxBatteryLevel = 4200
	// MaxLightIntensity is the brightest value a light channel accepts.
	MaxLightIntensity = 14
)

// IsStatus reports whether messages with this id update the vehicle state.
// Everything else is streamed as an event.
func IsStatus(id MessageID) bool {
	switch id {
	case IDVersionResponse,
		IDBatteryLevelResponse,
		IDPositionUpdate,
		IDOffsetFromRoadCenterUpdate,
		IDLoadingStatusUpdate,
		IDUndocumentedOffsetUpdate:
		return true
	}
	return false
}

// IsTelemetry reports whether messages with this id describe the vehicle's
// movement along the track.
func IsTelemetry(id MessageID) bool {
	return id == IDPositionUpdate || id == IDTransitionUpdate
}

// IsVehicleAdvertisement reports whether a scanned device advertises the
// vehicle service.
func IsVehicleAdvertisement(serviceUUIDs []string) bool {
	for _, u := range serviceUUIDs {
		if NormalizeUUID(u) == ServiceUUID {
			return true
		}
	}
	return false
}

// NormalizeUUID lower-cases a UUID and strips dashes so it can be compared
// against the constants in this package.
func NormalizeUUID(u string) string {
	return strings.ToLower(strings.ReplaceAll(u, "-", ""))
}
