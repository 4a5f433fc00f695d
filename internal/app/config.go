package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// FlowPath is the .hcl file describing the run.
	FlowPath string
	// FlowName selects a flow when the file defines more than one.
	FlowName string
	// DataDir holds settings, the coordinate cache and the execution log.
	DataDir string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &cfg, nil
}
