// Package cmd provides the command-line interface of procsim.
package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "procsim",
	Short: "Process-oriented discrete-event simulation.",
	Long: `procsim runs simulation models whose processes hold, wait for and ` +
		`interrupt each other on a shared virtual clock.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}

		logrus.SetLevel(level)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits through atexit so that recorders get flushed.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level",
		envString("LOG_LEVEL", "info"),
		"Log level (trace, debug, info, warn, error, fatal, panic)")
}

const envPrefix = "PROCSIM_"

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

// envString returns the PROCSIM_ variable with the given suffix, or def if it
// is not set.
func envString(name, def string) string {
	if v, ok := lookupEnv(name); ok {
		return v
	}

	return def
}

func envBool(name string, def bool) bool {
	v, ok := lookupEnv(name)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		logrus.Warnf("Ignoring %s%s=%q: %v", envPrefix, name, v, err)
		return def
	}

	return b
}

func envInt(name string, def int64) int64 {
	v, ok := lookupEnv(name)
	if !ok {
		return def
	}

	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		logrus.Warnf("Ignoring %s%s=%q: %v", envPrefix, name, v, err)
		return def
	}

	return i
}
