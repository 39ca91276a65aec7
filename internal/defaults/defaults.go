// Package defaults provides embedded starter files for the
// gharkhoji init subcommand.
package defaults

import _ "embed"

// ConfigYAML is the starter configuration file. Every setting is
// present and commented; the defaults run a local-only instance.
//
//go:embed config.example.yaml
var ConfigYAML []byte

// ListingsJSON is a tiny sample corpus in the format the seed
// subcommand imports.
//
//go:embed listings.example.json
var ListingsJSON []byte
