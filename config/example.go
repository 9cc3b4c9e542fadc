package config

import (
	_ "embed"
)

//go:embed example.yaml
var example string

// Example returns a commented reference configuration.
func Example() string {
	return example
}
