package host

import (
	"sync"

	"github.com/pkg/errors"
)

// I2CEEPROM simulates a 24Cxx serial EEPROM with two address bytes on an I²C
// bus. It implements the tinygo drivers.I2C interface. Fresh memory reads 0xFF.
type I2CEEPROM struct {
	mu   sync.Mutex
	Addr uint16
	mem  []byte
	ptr  uint16
	txs  int

	// FailAfter makes every transaction after the given count fail; 0 disables.
	FailAfter int
}

func NewI2CEEPROM(addr uint16, size int) *I2CEEPROM {
	m := make([]byte, size)
	for i := range m {
		m[i] = 0xFF
	}
	return &I2CEEPROM{Addr: addr, mem: m}
}

// Tx performs one write-then-read transaction. The first two written bytes set
// the memory pointer; the rest are stored. Reads continue from the pointer.
func (d *I2CEEPROM) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txs++
	if d.FailAfter > 0 && d.txs > d.FailAfter {
		return errors.Errorf("i2c: no ack from 0x%02x", addr)
	}
	if addr != d.Addr {
		return errors.Errorf("i2c: no device at 0x%02x", addr)
	}
	size := uint16(len(d.mem))
	if len(w) >= 2 {
		d.ptr = (uint16(w[0])<<8 | uint16(w[1])) % size
		for _, b := range w[2:] {
			d.mem[d.ptr] = b
			d.ptr = (d.ptr + 1) % size
		}
	}
	for i := range r {
		r[i] = d.mem[d.ptr]
		d.ptr = (d.ptr + 1) % size
	}
	return nil
}

// Bytes returns a copy of memory.
func (d *I2CEEPROM) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.mem...)
}

// Transactions counts calls to Tx.
func (d *I2CEEPROM) Transactions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txs
}
