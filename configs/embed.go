// Package configs holds the configuration templates written by
// 'srch config init'. They are embedded at build time so every binary
// carries them.
//
// Keep the values in the templates equal to the defaults in
// internal/config NewConfig: a freshly written file must not change behavior.
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/srch/config.yaml by
// 'srch config init --user'. It holds machine-wide settings.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .srch.yaml by 'srch config init'.
// It holds settings that travel with a document collection.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
