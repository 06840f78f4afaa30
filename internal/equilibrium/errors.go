package equilibrium

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a snapshot whose required fields are unusable.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidOverride marks a scenario override that has no sane clamp.
	ErrInvalidOverride = errors.New("invalid override")

	// ErrInvalidModel marks a weight or parameter set the engine refuses to run.
	ErrInvalidModel = errors.New("invalid model")
)

// AssetError ties a failure to the asset that produced it.
type AssetError struct {
	Key AssetKey
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %v", e.Key, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
