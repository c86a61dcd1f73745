package protocol

import (
	"github.com/pkg/errors"
)

var (
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrUnknownVehicleModel = errors.New("unknown vehicle model")
	ErrInvalidCommand      = errors.New("invalid command")
)
