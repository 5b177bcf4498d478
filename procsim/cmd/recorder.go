package cmd

import (
	"fmt"
	"os"

	"github.com/sarchlab/procsim/datarecording"
)

// openRecorder connects to the backend named in the config. The recorder
// constructors panic on connection failures; those are reported as errors.
func openRecorder(cfg recorderConfig) (rec datarecording.DataRecorder, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("cannot open %s recorder: %v", cfg.Backend, r)
		}
	}()

	switch cfg.Backend {
	case "", "sqlite":
		if cfg.Target != "" {
			if _, statErr := os.Stat(cfg.Target + ".sqlite3"); statErr == nil {
				return nil, fmt.Errorf("file %s.sqlite3 already exists", cfg.Target)
			}
		}

		return datarecording.New(cfg.Target), nil
	case "mysql":
		if cfg.Target == "" {
			return nil, fmt.Errorf("mysql recorder needs a DSN")
		}

		return datarecording.NewMySQLRecorder(cfg.Target), nil
	case "clickhouse":
		addr := cfg.Target
		if addr == "" {
			addr = "localhost:9000"
		}

		return datarecording.NewClickHouseRecorder(datarecording.ClickHouseOptions{
			Addr:     addr,
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		}), nil
	case "mongodb":
		uri := cfg.Target
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}

		return datarecording.NewMongoDBRecorder(uri, cfg.Database), nil
	default:
		return nil, fmt.Errorf("unknown recorder backend %q", cfg.Backend)
	}
}
