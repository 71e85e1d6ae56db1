// Package config loads and validates application settings from defaults,
// an optional YAML file, and CADENZA_-prefixed environment variables. It
// gives the rest of the system typed access to tuning knobs (server, database,
// generation bounds, training, audio tools, LLM captioning) without exposing
// how they were sourced.
package config
