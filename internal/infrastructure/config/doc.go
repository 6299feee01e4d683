// Package config loads and validates Storybox Core configuration.
//
// Configuration comes from a YAML file with hardcoded defaults and
// STORYBOX_* environment variable overrides. Secrets (the cloud refresh
// token, the telemetry token) should always be supplied via environment
// variables rather than committed to the config file.
package config
