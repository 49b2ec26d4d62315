// Package config loads the application configuration from a YAML file,
// with environment variable overrides for deployment-specific values
// such as the data directory and mailbox credentials.
package config
