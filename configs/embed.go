// Package configs embeds the configuration template shipped in every
// build. The init command writes it as a starting .fileseer.yaml.
package configs

import _ "embed"

// ProjectConfigTemplate is a commented .fileseer.yaml skeleton.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
