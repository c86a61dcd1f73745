package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
)

// Device identifies the vehicle an event is about.
type Device struct {
	ID       string
	Identity protocol.VehicleIdentity
}

func (d Device) Source() Device {
	return d
}

type Event interface {
	Source() Device
	Name() string
}

type DeviceConnected struct {
	Device
}

type DeviceDisconnected struct {
	Device
}

type SdkModeOn struct {
	Device
}

// CarReady is published once notifications are enabled and the vehicle
// streams telemetry.
type CarReady struct {
	Device
	FirmwareVersion uint16
}

// CarStatus carries a snapshot of the vehicle state after a status message
// was applied.
type CarStatus struct {
	Device
	State VehicleState
}

// CarEvent carries any message that is not a status message.
type CarEvent struct {
	Device
	Message protocol.Message
}

type StoppedAtStart struct {
	Device
}

func (DeviceConnected) Name() string    { return "deviceConnected" }
func (DeviceDisconnected) Name() string { return "deviceDisconnected" }
func (SdkModeOn) Name() string          { return "sdkModeOn" }
func (CarReady) Name() string           { return "carReady" }
func (CarStatus) Name() string          { return "carStatusMessage" }
func (CarEvent) Name() string           { return "carEventMessage" }
func (StoppedAtStart) Name() string     { return "stoppedAtStart" }
