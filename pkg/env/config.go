// Package env configures the device from flags, environment and board file.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/stepctl/pkg/board"
	"github.com/robotalks/stepctl/pkg/console"
	"github.com/robotalks/stepctl/pkg/framework"
	"github.com/robotalks/stepctl/pkg/stepper"
	"github.com/robotalks/stepctl/pkg/supervisor"
)

// Config provides the start-up options of the device.
type Config struct {
	// Port is the console transport, "stdio" or a serial device path.
	Port string
	Baud int
	// BoardFile is the optional YAML file describing the board.
	BoardFile string
	Backend   string

	Poll       time.Duration
	Discipline string
	HalfPeriod time.Duration

	// MQTTURL enables telemetry when set,
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL     string
	MetricsAddr string
	DeviceID    string
}

var defaultConfig = Config{
	Port:       console.StdioTransport,
	Baud:       console.DefaultBaud,
	Backend:    board.BackendSim,
	Poll:       framework.DefaultInterval,
	Discipline: supervisor.EventDriven.String(),
	HalfPeriod: stepper.DefaultHalfPeriod,
}

func init() {
	if val := os.Getenv("STEPCTL_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("STEPCTL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = baud
		}
	}
	if val := os.Getenv("STEPCTL_BOARD"); val != "" {
		defaultConfig.BoardFile = val
	}
	if val := os.Getenv("STEPCTL_BACKEND"); val != "" {
		defaultConfig.Backend = val
	}
	if val := os.Getenv("STEPCTL_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("STEPCTL_METRICS_ADDR"); val != "" {
		defaultConfig.MetricsAddr = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet binds conf to flags in fs.
func SetupFlagSet(fs *flag.FlagSet, conf *Config) {
	fs.StringVar(&conf.Port, "port", conf.Port, "Console transport: stdio or serial device path.")
	fs.IntVar(&conf.Baud, "baud", conf.Baud, "Serial baud rate.")
	fs.StringVar(&conf.BoardFile, "board", conf.BoardFile, "Board YAML file.")
	fs.StringVar(&conf.Backend, "backend", conf.Backend, "Line backend when no board file: sim or rpio.")
	fs.DurationVar(&conf.Poll, "poll", conf.Poll, "Supervisor interval.")
	fs.StringVar(&conf.Discipline, "discipline", conf.Discipline, "Session supervision: event or poll.")
	fs.DurationVar(&conf.HalfPeriod, "half-period", conf.HalfPeriod, "Hold per STEP phase.")
	fs.StringVar(&conf.MQTTURL, "mqtt", conf.MQTTURL, "MQTT broker URL, empty disables telemetry.")
	fs.StringVar(&conf.MetricsAddr, "metrics", conf.MetricsAddr, "Prometheus listen address, empty disables.")
	fs.StringVar(&conf.DeviceID, "id", conf.DeviceID, "Device ID, defaults to machine ID.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks values which can't be used.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be specified")
	}
	if !console.IsLocal(c.Port) && c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("invalid poll interval %v", c.Poll)
	}
	if c.HalfPeriod < 0 {
		return fmt.Errorf("invalid half period %v", c.HalfPeriod)
	}
	if _, err := supervisor.ParseDiscipline(c.Discipline); err != nil {
		return err
	}
	return nil
}

// BoardConfig loads the board file if specified, otherwise uses the
// default pins with the configured backend.
func (c *Config) BoardConfig() (*board.Config, error) {
	conf, err := board.LoadConfig(c.BoardFile)
	if err != nil {
		return nil, err
	}
	if c.BoardFile == "" {
		conf.Backend = c.Backend
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// MustBoardConfig loads the board config and fails on error.
func (c *Config) MustBoardConfig() *board.Config {
	conf, err := c.BoardConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// SupervisorDiscipline parses Discipline.
func (c *Config) SupervisorDiscipline() supervisor.Discipline {
	d, _ := supervisor.ParseDiscipline(c.Discipline)
	return d
}

// ID returns DeviceID or the machine ID if not specified.
func (c *Config) ID() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	return MachineID()
}
