package board

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives the lines through Raspberry Pi GPIO registers.
type RPIO struct {
	pins       [NumLines]rpio.Pin
	indicators [NumLines]*rpio.Pin
}

// OpenRPIO maps GPIO memory and configures the pins as outputs.
func OpenRPIO(conf *Config) (*RPIO, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %v", err)
	}
	b := &RPIO{}
	for l, num := range conf.Pins.numbers() {
		b.pins[l] = rpio.Pin(num)
		b.pins[l].Output()
		glog.V(2).Infof("line %s on GPIO%d", Line(l), num)
	}
	for l, num := range conf.Indicators.numbers() {
		if num < 0 {
			continue
		}
		pin := rpio.Pin(num)
		pin.Output()
		pin.Low()
		b.indicators[l] = &pin
		glog.V(2).Infof("indicator %s on GPIO%d", Line(l), num)
	}
	return b, nil
}

// Set implements Lines.
func (b *RPIO) Set(l Line) {
	b.pins[l].High()
	if ind := b.indicators[l]; ind != nil {
		ind.High()
	}
}

// Clear implements Lines.
func (b *RPIO) Clear(l Line) {
	b.pins[l].Low()
	if ind := b.indicators[l]; ind != nil {
		ind.Low()
	}
}

// Close releases GPIO memory.
func (b *RPIO) Close() error {
	return rpio.Close()
}
