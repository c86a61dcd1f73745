package overdrive

// Peripheral is the wireless link to a single vehicle. Calls start an
// operation; its outcome is reported to the vehicle's PeripheralHandler.
type Peripheral interface {
	ID() string
	Connect() error
	DiscoverServices() error
	Disconnect() error
}

type Service interface {
	UUID() string
	DiscoverCharacteristics() error
}

type Characteristic interface {
	UUID() string
	// Write returns once the transport has acknowledged the write.
	Write(data []byte) error
	SetNotify(enabled bool) error
}

// PeripheralHandler receives transport events for one vehicle. Transports
// must deliver them sequentially and in order, and may deliver them from
// within a Peripheral or Characteristic call.
type PeripheralHandler interface {
	HandleConnected() error
	HandleServices(services []Service) error
	HandleCharacteristics(chars []Characteristic) error
	HandleNotification(data []byte)
	HandleDisconnected()
}

// Advertisement holds the records a vehicle advertises, read once at
// discovery.
type Advertisement struct {
	ManufacturerData []byte
	LocalName        []byte
	ServiceUUIDs     []string
}

// EventSink receives the events a vehicle publishes to application code.
type EventSink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) {
	f(e)
}

// MultiSink publishes every event to each sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}
