// Package config provides the file-backed, hot-reloadable configuration layer
// used by the Keel framework.
package config

import "github.com/go-viper/mapstructure/v2"

// Config interface defines the basic configuration contract
type Config interface {
	GetName() string
	Validate() error
}

// Decode maps a raw key/value payload onto a typed struct using the same
// mapstructure tags the file loader honors. It is used by plugin initializer
// strategies to decode per-plugin configuration fragments.
func Decode(input map[string]any, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
