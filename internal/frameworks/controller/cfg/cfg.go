// Package cfg decodes the raw [controllers.<name>] config maps into the
// typed configuration struct of each controller.
package cfg

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Setter is the interface a configuration struct may implement
// to set default options after decoding.
type Setter interface {
	ApplyDefaults()
}

func newDecoder(md *mapstructure.Metadata, c any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: md,
		Result:   c,
		TagName:  "mapstructure",
		// TOML hands us int64 and strings for durations.
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
}

// Decode decodes the given raw input map to the target pointer c.
// If c implements Setter, ApplyDefaults() is called automatically.
func Decode(input map[string]any, c any) error {
	_, err := DecodeWithUnused(input, c)
	return err
}

// DecodeWithUnused decodes input to c and returns any unused keys (sorted).
// Use this when you want to warn about unused config keys at the call site.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := newDecoder(&md, c)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}

// MustDecodeStrict decodes input to c and returns an error if any keys are unused.
func MustDecodeStrict(input map[string]any, c any) error {
	unused, err := DecodeWithUnused(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("unused config keys: %v", unused)
	}
	return nil
}
