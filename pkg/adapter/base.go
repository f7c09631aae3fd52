package adapter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// Base carries the state every adapter needs. Embed it in concrete
// adapters.
type Base struct {
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// NewBase returns a Base using logger, or a discard logger when nil.
func NewBase(logger *slog.Logger) Base {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Base{Logger: logger}
}

// DecodeParams decodes adapter-specific params into out, a pointer to a
// struct with mapstructure tags. Strings are converted to numbers, bools
// and durations so values from env vars and flags decode cleanly. Unknown
// keys are an error.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid store params: %w", err)
	}
	return nil
}
