package actuator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

// Status is what the RGB boot indicator shows.
type Status uint8

const (
	StatusOff Status = iota
	StatusStarting
	StatusFailed
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusFailed:
		return "failed"
	case StatusReady:
		return "ready"
	}
	return "off"
}

// Indicator shows the boot status.
type Indicator interface {
	SetStatus(Status) error
}

// ErrNoGPIO means the GPIO memory could not be mapped, i.e. not running on a Pi.
var ErrNoGPIO = errors.New("gpio unavailable")

// Pins is the board wiring.
type Pins struct {
	BuzzerA int `mapstructure:"buzzer_a"`
	BuzzerB int `mapstructure:"buzzer_b"`
	Tone    int `mapstructure:"tone"` // buzzer frequency, Hz

	Red   int `mapstructure:"red"`
	Green int `mapstructure:"green"`
	Blue  int `mapstructure:"blue"`

	// LEDGate enables the buffer between MOSI and the LED chain. WS2812s have
	// no chip select, so the gate is only high while a frame is shifted out.
	LEDGate int   `mapstructure:"led_gate"`
	LEDChip uint8 `mapstructure:"led_chip"`
	ADCChip uint8 `mapstructure:"adc_chip"`

	InitAttempts int           `mapstructure:"init_attempts"`
	InitBackoff  time.Duration `mapstructure:"init_backoff"`
}

// DefaultPins matches the reference wiring: buzzers on the PWM0/PWM1 pins,
// MCP3008 on CE0 and the LED chain on MOSI behind a buffer enabled by GPIO5.
var DefaultPins = Pins{
	BuzzerA:      12,
	BuzzerB:      13,
	Tone:         2000,
	Red:          17,
	Green:        27,
	Blue:         22,
	LEDGate:      5,
	LEDChip:      1,
	ADCChip:      0,
	InitAttempts: 5,
	InitBackoff:  200 * time.Millisecond,
}

// Validate rejects wirings where two outputs share a GPIO or the LED chain
// and the ADC share a chip select.
func (p Pins) Validate() error {
	used := map[int]string{}
	for _, pin := range []struct {
		name string
		n    int
	}{
		{"buzzer_a", p.BuzzerA}, {"buzzer_b", p.BuzzerB},
		{"red", p.Red}, {"green", p.Green}, {"blue", p.Blue},
		{"led_gate", p.LEDGate},
	} {
		if pin.n < 0 || pin.n > 27 {
			return fmt.Errorf("%s: no GPIO %d", pin.name, pin.n)
		}
		if other, ok := used[pin.n]; ok {
			return fmt.Errorf("%s and %s both use GPIO %d", other, pin.name, pin.n)
		}
		used[pin.n] = pin.name
	}
	// SPI0 MOSI, MISO, SCLK, CE0, CE1
	for _, n := range []int{10, 9, 11, 8, 7} {
		if name, ok := used[n]; ok {
			return fmt.Errorf("%s uses SPI0 pin GPIO %d", name, n)
		}
	}
	if p.LEDChip == p.ADCChip {
		return fmt.Errorf("led_chip and adc_chip are both CE%d", p.ADCChip)
	}
	return nil
}

const (
	ledSpeed   = 2400000 // 3 SPI bits per WS2812 bit
	adcSpeed   = 1000000
	pwmCycle   = 100
	resetBytes = 30 // >50µs low at ledSpeed
	adcMax     = 1023
)

// Board is the Raspberry Pi hardware. It implements Sequencer, PWM, Indicator
// and sensor.ADC.
type Board struct {
	pins   Pins
	log    logr.Logger
	buzz   [2]rpio.Pin
	status [3]rpio.Pin
	gate   rpio.Pin

	mu  sync.Mutex
	buf []byte
	ok  bool
}

// OpenBoard maps GPIO and brings up SPI and PWM. ErrNoGPIO is returned when
// GPIO is not available at all; SPI init is retried InitAttempts times with the
// indicator showing StatusFailed between attempts.
func OpenBoard(pins Pins, log logr.Logger) (*Board, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGPIO, err)
	}
	b := &Board{
		pins:   pins,
		log:    log,
		buzz:   [2]rpio.Pin{rpio.Pin(pins.BuzzerA), rpio.Pin(pins.BuzzerB)},
		status: [3]rpio.Pin{rpio.Pin(pins.Red), rpio.Pin(pins.Green), rpio.Pin(pins.Blue)},
		gate:   rpio.Pin(pins.LEDGate),
		buf:    make([]byte, 0, 25*wordBytes+resetBytes),
	}
	b.gate.Output()
	b.gate.Low()
	for _, p := range b.status {
		p.Output()
		p.Low()
	}
	b.SetStatus(StatusStarting)

	attempts := pins.InitAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = rpio.SpiBegin(rpio.Spi0); err == nil {
			break
		}
		log.Error(err, "SPI init failed", "attempt", i+1, "of", attempts)
		b.SetStatus(StatusFailed)
		time.Sleep(pins.InitBackoff)
	}
	if err != nil {
		rpio.Close()
		return nil, fmt.Errorf("failed to start SPI after %d attempts: %w", attempts, err)
	}

	for _, p := range b.buzz {
		p.Mode(rpio.Pwm)
		p.Freq(pins.Tone * pwmCycle)
		p.DutyCycle(0, pwmCycle)
	}
	b.ok = true
	return b, nil
}

// Put queues one grid word.
func (b *Board) Put(word uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return ErrNotReady
	}
	enc := encodeWord(word)
	b.buf = append(b.buf, enc[:]...)
	return nil
}

// Latch shifts the queued words out followed by the reset gap.
func (b *Board) Latch() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return ErrNotReady
	}
	for i := 0; i < resetBytes; i++ {
		b.buf = append(b.buf, 0)
	}
	rpio.SpiChipSelect(b.pins.LEDChip)
	rpio.SpiSpeed(ledSpeed)
	b.gate.High()
	rpio.SpiTransmit(b.buf...)
	b.gate.Low()
	b.buf = b.buf[:0]
	return nil
}

// SetDuty sets a buzzer channel.
func (b *Board) SetDuty(channel int, duty float64) error {
	if channel < 0 || channel >= len(b.buzz) {
		return fmt.Errorf("no buzzer channel %d", channel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return ErrNotReady
	}
	b.buzz[channel].DutyCycle(uint32(clampDuty(duty)*pwmCycle), pwmCycle)
	return nil
}

// Read samples an MCP3008 channel in single-ended mode.
func (b *Board) Read(channel int) (uint16, error) {
	if channel < 0 || channel > 7 {
		return 0, fmt.Errorf("no ADC channel %d", channel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return 0, ErrNotReady
	}
	rpio.SpiChipSelect(b.pins.ADCChip)
	rpio.SpiSpeed(adcSpeed)
	frame := []byte{1, byte(8+channel) << 4, 0}
	rpio.SpiExchange(frame)
	return uint16(frame[1]&0x03)<<8 | uint16(frame[2]), nil
}

// FullScale is the MCP3008 maximum count.
func (b *Board) FullScale() uint16 { return adcMax }

// SetStatus lights the indicator: blue starting, red failed, green ready.
func (b *Board) SetStatus(s Status) error {
	on := [3]bool{}
	switch s {
	case StatusFailed:
		on[0] = true
	case StatusReady:
		on[1] = true
	case StatusStarting:
		on[2] = true
	}
	for i, p := range b.status {
		if on[i] {
			p.High()
		} else {
			p.Low()
		}
	}
	return nil
}

// Close silences the buzzers, turns the indicator off and releases GPIO.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return nil
	}
	for _, p := range b.buzz {
		p.DutyCycle(0, pwmCycle)
	}
	for _, p := range b.status {
		p.Low()
	}
	b.gate.Low()
	rpio.SpiEnd(rpio.Spi0)
	b.ok = false
	return rpio.Close()
}
