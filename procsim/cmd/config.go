package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/procsim/examples/interrupt"
	"github.com/sarchlab/procsim/examples/machineshop"
	"gopkg.in/yaml.v3"
)

// runConfig is the content of a --config file. Sections that are left out
// keep their defaults.
type runConfig struct {
	Seed        int64              `yaml:"seed"`
	MachineShop machineshop.Config `yaml:"machineshop"`
	Interrupt   interrupt.Config   `yaml:"interrupt"`
	Recorder    recorderConfig     `yaml:"recorder"`
}

// recorderConfig tells where traces are written.
type recorderConfig struct {
	// Backend is one of sqlite, mysql, clickhouse and mongodb.
	Backend string `yaml:"backend"`

	// Target is the database file for sqlite, the DSN for mysql, the address
	// for clickhouse and the URI for mongodb.
	Target   string `yaml:"target"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		Seed:        1,
		MachineShop: machineshop.DefaultConfig(),
		Interrupt:   interrupt.DefaultConfig(),
		Recorder: recorderConfig{
			Backend: "sqlite",
		},
	}
}

// loadRunConfig reads a YAML file on top of the defaults. Unknown keys are
// errors.
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err = decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
