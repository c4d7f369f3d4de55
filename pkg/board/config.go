package board

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v3"
)

// Backends.
const (
	BackendSim  = "sim"
	BackendRPIO = "rpio"
)

// PinMap assigns GPIO numbers to lines. A negative number means unused.
type PinMap struct {
	Step   int `yaml:"step"`
	Dir    int `yaml:"dir"`
	Enable int `yaml:"enable"`
}

func (m PinMap) numbers() [NumLines]int {
	return [NumLines]int{m.Step, m.Dir, m.Enable}
}

// Config describes the board wiring.
type Config struct {
	Backend    string `yaml:"backend"`
	Pins       PinMap `yaml:"pins"`
	Indicators PinMap `yaml:"indicators"`
}

// DefaultConfig is the wiring of the reference board.
func DefaultConfig() *Config {
	return &Config{
		Backend:    BackendSim,
		Pins:       PinMap{Step: 10, Dir: 11, Enable: 12},
		Indicators: PinMap{Step: -1, Dir: -1, Enable: -1},
	}
}

// ErrDuplicatePin indicates two lines share a GPIO.
var ErrDuplicatePin = errors.New("duplicate pin")

// Validate checks pins are assigned and distinct.
func (c *Config) Validate() error {
	used := make(map[int]string)
	check := func(kind string, m PinMap, required bool) error {
		for l, num := range m.numbers() {
			if num < 0 {
				if required {
					return fmt.Errorf("%s pin for %s not assigned", kind, Line(l))
				}
				continue
			}
			name := kind + " " + Line(l).String()
			if prev, ok := used[num]; ok {
				return fmt.Errorf("%v: GPIO%d used by %s and %s", ErrDuplicatePin, num, prev, name)
			}
			used[num] = name
		}
		return nil
	}
	if err := check("line", c.Pins, true); err != nil {
		return err
	}
	return check("indicator", c.Indicators, false)
}

// Decode overlays YAML content on the config.
func (c *Config) Decode(r io.Reader) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid board config: %v", err)
	}
	return nil
}

// LoadConfig loads the board file on top of DefaultConfig.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := conf.Decode(f); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return conf, nil
}

// Open creates the Lines for the configured backend and puts them
// into the power-on state. The returned closer releases the hardware.
func (c *Config) Open() (Lines, io.Closer, error) {
	var lines Lines
	var closer io.Closer = ioutil.NopCloser(nil)
	switch c.Backend {
	case "", BackendSim:
		rec := NewRecorder()
		rec.Keep = 64
		lines = rec
	case BackendRPIO:
		b, err := OpenRPIO(c)
		if err != nil {
			return nil, nil, err
		}
		lines, closer = b, b
	default:
		return nil, nil, fmt.Errorf("unknown board backend: %q", c.Backend)
	}
	Reset(lines)
	return lines, closer, nil
}
