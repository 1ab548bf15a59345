package nvstore

import (
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"

	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// AT24 is a ByteStore on a 24Cxx serial EEPROM.
//
// The device ignores the bus while it programs a byte, so each write is
// followed by a bounded poll that retries a one-byte read until the chip
// acknowledges again.
type AT24 struct {
	dev     at24cx.Device
	clk     timex.Clock
	size    uint16
	timeout time.Duration
}

// NewAT24 configures a device of size bytes at the 7-bit bus address addr.
func NewAT24(bus drivers.I2C, addr uint16, size uint16, clk timex.Clock, timeout time.Duration) *AT24 {
	dev := at24cx.New(bus)
	dev.Address = addr
	dev.Configure(at24cx.Config{
		PageSize:        32,
		StartRAMAddress: 0,
		EndRAMAddress:   size,
	})
	return &AT24{dev: dev, clk: clk, size: size, timeout: timeout}
}

func (a *AT24) ReadByte(addr uint16) (byte, error) {
	if err := checkAddr("at24.read", addr, a.size); err != nil {
		return 0, err
	}
	v, err := a.dev.ReadByte(addr)
	if err != nil {
		return 0, errcode.Wrap(errcode.StoreFault, "at24.read", err)
	}
	return v, nil
}

func (a *AT24) WriteByte(addr uint16, v byte) error {
	if err := checkAddr("at24.write", addr, a.size); err != nil {
		return err
	}
	if err := a.dev.WriteByte(addr, v); err != nil {
		return errcode.Wrap(errcode.StoreFault, "at24.write", err)
	}
	var got byte
	err := timex.WaitFor(a.clk, a.timeout, time.Millisecond, func() bool {
		b, rerr := a.dev.ReadByte(addr)
		got = b
		return rerr == nil
	})
	if err != nil {
		return &errcode.E{C: errcode.Timeout, Op: "at24.write", Msg: "no ack after write", Err: err}
	}
	if got != v {
		return &errcode.E{C: errcode.StoreFault, Op: "at24.write", Msg: "verify mismatch"}
	}
	return nil
}
