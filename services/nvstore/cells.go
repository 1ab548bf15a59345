package nvstore

import (
	"time"

	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/x/conv"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// Unlock keys written back to back immediately before a write is started.
const (
	unlockKey1 = 0x55
	unlockKey2 = 0xAA
)

// Registers is the register-level view of an on-chip data EEPROM.
type Registers interface {
	SetAddress(addr uint16)
	SetData(v byte)
	StartRead()
	Data() byte
	SetWriteEnable(on bool)
	Unlock(key byte)
	StartWrite()
	WriteBusy() bool
}

// Cells is a ByteStore over Registers.
type Cells struct {
	regs    Registers
	mask    hal.Mask
	clk     timex.Clock
	size    uint16
	timeout time.Duration
	poll    time.Duration
}

// NewCells binds regs. timeout bounds the completion poll of a single write;
// clk must keep running with interrupts masked.
func NewCells(regs Registers, size uint16, mask hal.Mask, clk timex.Clock, timeout time.Duration) *Cells {
	return &Cells{
		regs:    regs,
		mask:    mask,
		clk:     clk,
		size:    size,
		timeout: timeout,
		poll:    50 * time.Microsecond,
	}
}

// ReadByte needs no critical section.
func (c *Cells) ReadByte(addr uint16) (byte, error) {
	if err := checkAddr("eeprom.read", addr, c.size); err != nil {
		return 0, err
	}
	c.regs.SetAddress(addr)
	c.regs.StartRead()
	return c.regs.Data(), nil
}

// WriteByte commits one byte. Interrupts stay masked from the first unlock key
// until the device reports completion; the mask state and write-enable are
// restored on every exit.
func (c *Cells) WriteByte(addr uint16, v byte) error {
	if err := checkAddr("eeprom.write", addr, c.size); err != nil {
		return err
	}
	c.regs.SetAddress(addr)
	c.regs.SetData(v)

	c.regs.SetWriteEnable(true)
	defer c.regs.SetWriteEnable(false)

	state := c.mask.Disable()
	defer c.mask.Restore(state)

	c.regs.Unlock(unlockKey1)
	c.regs.Unlock(unlockKey2)
	c.regs.StartWrite()

	err := timex.WaitFor(c.clk, c.timeout, c.poll, func() bool { return !c.regs.WriteBusy() })
	if err != nil {
		return &errcode.E{C: errcode.Timeout, Op: "eeprom.write", Msg: addrMsg(addr), Err: err}
	}
	return nil
}

func addrMsg(addr uint16) string {
	var buf [5]byte
	return "addr " + string(conv.Utoa(buf[:], uint64(addr)))
}
