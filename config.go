package overdrive

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"io"
	"os"
	"runtime"
)

// Config controls how a Vehicle talks to its peripheral. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// Platform selects the entry in ServiceIndex. Defaults to runtime.GOOS.
	Platform string
	// ServiceIndex is the position of the vehicle service in the list a
	// platform's BLE stack reports. The order differs per stack and is not
	// part of the protocol.
	ServiceIndex map[string]int

	// ReferenceTracks are the road pieces on which the vehicle is given a
	// one-time lane reference.
	ReferenceTracks []uint8
	// LaneChangeStepMm is the offset change applied by ChangeLane.
	LaneChangeStepMm float32
	// TelemetryBuffer is the channel size of each telemetry subscriber.
	TelemetryBuffer int

	StopAtLine StopAtLineConfig
}

type StopAtLineConfig struct {
	// RoadPieceID is the piece the vehicle stops on.
	RoadPieceID   uint8
	ApproachSpeed int16
	ApproachAccel int16
	StopAccel     int16
}

func DefaultConfig() Config {
	return Config{
		Platform: runtime.GOOS,
		ServiceIndex: map[string]int{
			"linux":   2,
			"windows": 2,
			"darwin":  0,
		},
		ReferenceTracks:  []uint8{36, 39, 40},
		LaneChangeStepMm: 9,
		TelemetryBuffer:  8,
		StopAtLine: StopAtLineConfig{
			RoadPieceID:   34,
			ApproachSpeed: 600,
			ApproachAccel: 25000,
			StopAccel:     25000,
		},
	}
}

// ServiceIndexFor returns the service index for a platform. Platforms
// without an entry use the first service.
func (c Config) ServiceIndexFor(platform string) int {
	if idx, ok := c.ServiceIndex[platform]; ok {
		return idx
	}
	return 0
}

func (c Config) isReferenceTrack(pieceID uint8) bool {
	for _, id := range c.ReferenceTracks {
		if id == pieceID {
			return true
		}
	}
	return false
}

func (c Config) validate() error {
	for platform, idx := range c.ServiceIndex {
		if idx < 0 {
			return errors.Errorf("negative service index %d for %s", idx, platform)
		}
	}
	if c.LaneChangeStepMm <= 0 {
		return errors.Errorf("lane change step must be positive, got %v", c.LaneChangeStepMm)
	}
	if c.TelemetryBuffer < 1 {
		return errors.Errorf("telemetry buffer must be at least 1, got %d", c.TelemetryBuffer)
	}
	if c.StopAtLine.StopAccel < 0 || c.StopAtLine.ApproachAccel < 0 {
		return errors.New("stop at line acceleration must not be negative")
	}
	return nil
}

// LoadConfig reads TOML on top of DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	config := DefaultConfig()
	if _, err := toml.Decode(string(data), &config); err != nil {
		return Config{}, errors.Wrap(err, "unable to decode vehicle configuration")
	}
	if err := config.validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid vehicle configuration")
	}
	return config, nil
}

func LoadConfigFile(fileName string) (Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfig(file)
}
