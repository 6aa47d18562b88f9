// Package config loads relay configuration from YAML with ${VAR} expansion.
package config
