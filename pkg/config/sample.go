package config

import _ "embed"

//go:embed sample_config.toml
var sampleConfig string

// Sample returns an annotated configuration file with the default values.
func Sample() string {
	return sampleConfig
}
