//go:build rp2040

// Package rp2 provides the light's board services on a Raspberry Pi Pico.
package rp2

import (
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/services/nvstore"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// Pin assignment (GP numbers).
const (
	PinRed   = machine.GP13
	PinGreen = machine.GP14
	PinBlue  = machine.GP15

	PinButtonRed   = machine.GP10
	PinButtonGreen = machine.GP11
	PinButtonBlue  = machine.GP12

	BaudRate = 9600

	eepromAddr = 0x50
	eepromSize = 4096 // 24C32
)

// Board is the configured hardware.
type Board struct {
	Channels [types.NumChannels]hal.OutputPin
	Buttons  [types.NumChannels]hal.Button
	Mask     Mask
	Watchdog Watchdog
	Serial   *uartx.UART
	Store    *nvstore.AT24
	Clock    timex.Busy
}

// NewBoard configures pins, UART0 and the I²C EEPROM.
func NewBoard(storeTimeout time.Duration) (*Board, error) {
	b := &Board{Serial: uartx.UART0}

	for ch, p := range [...]machine.Pin{PinRed, PinGreen, PinBlue} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
		b.Channels[ch] = p
	}
	for ch, p := range [...]machine.Pin{PinButtonRed, PinButtonGreen, PinButtonBlue} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		b.Buttons[ch] = hal.Button{Pin: p, ActiveLow: true}
	}

	if err := b.Serial.Configure(machine.UARTConfig{
		BaudRate: BaudRate,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		return nil, err
	}

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		return nil, err
	}
	b.Store = nvstore.NewAT24(i2c, eepromAddr, eepromSize, b.Clock, storeTimeout)
	return b, nil
}

// Halt spins until the watchdog resets the chip.
func Halt() {
	println("[rp2] halted, waiting for watchdog")
	for {
	}
}
