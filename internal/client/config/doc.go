// Package config loads client settings with the precedence
// defaults -> JSON file -> command-line flags.
package config
