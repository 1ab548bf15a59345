package host

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Unlock keys expected by the simulated data EEPROM controller, in order.
const (
	UnlockKey1 = 0x55
	UnlockKey2 = 0xAA
)

// EEPROM simulates an on-chip data EEPROM behind a register interface.
//
// A write only commits when write-enable is set, the two unlock keys were
// written back to back and the write is started immediately after them. Any
// other register access in between voids the unlock. If a Mask is attached,
// a write started while the mask is not held counts as a violation.
// Rejected writes are counted and leave memory untouched.
type EEPROM struct {
	mu sync.Mutex

	mem  []byte
	path string

	addr   uint16
	data   byte
	wren   bool
	unlock int

	busy    int
	pending bool
	pAddr   uint16
	pData   byte

	// BusyPolls is how many WriteBusy polls report busy after StartWrite.
	BusyPolls int
	// Stuck makes every write hang forever.
	Stuck bool
	// Mask, when set, must be held while a write is started.
	Mask *Mask

	violations int
	commits    int
}

// NewEEPROM returns a zero-filled device of size bytes.
func NewEEPROM(size int) *EEPROM {
	return &EEPROM{mem: make([]byte, size), BusyPolls: 2}
}

// OpenEEPROM loads memory from path, creating it zero-filled if missing.
// Every committed write is flushed back to the file.
func OpenEEPROM(path string, size int) (*EEPROM, error) {
	e := NewEEPROM(size)
	e.path = path
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		copy(e.mem, b)
	case os.IsNotExist(err):
		if err := e.flushLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(err, "read eeprom image %s", path)
	}
	return e, nil
}

func (e *EEPROM) flushLocked() error {
	if e.path == "" {
		return nil
	}
	if err := os.WriteFile(e.path, e.mem, 0o644); err != nil {
		return errors.Wrapf(err, "write eeprom image %s", e.path)
	}
	return nil
}

// Size returns the number of bytes.
func (e *EEPROM) Size() uint16 { return uint16(len(e.mem)) }

func (e *EEPROM) SetAddress(addr uint16) {
	e.mu.Lock()
	e.unlock = 0
	e.addr = addr
	e.mu.Unlock()
}

func (e *EEPROM) SetData(v byte) {
	e.mu.Lock()
	e.unlock = 0
	e.data = v
	e.mu.Unlock()
}

func (e *EEPROM) StartRead() {
	e.mu.Lock()
	e.unlock = 0
	if int(e.addr) < len(e.mem) {
		e.data = e.mem[e.addr]
	}
	e.mu.Unlock()
}

func (e *EEPROM) Data() byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unlock = 0
	return e.data
}

func (e *EEPROM) SetWriteEnable(on bool) {
	e.mu.Lock()
	e.unlock = 0
	e.wren = on
	e.mu.Unlock()
}

func (e *EEPROM) Unlock(key byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.unlock == 0 && key == UnlockKey1:
		e.unlock = 1
	case e.unlock == 1 && key == UnlockKey2:
		e.unlock = 2
	default:
		e.unlock = 0
	}
}

func (e *EEPROM) StartWrite() {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.wren && e.unlock == 2 && int(e.addr) < len(e.mem) && !e.pending
	if e.Mask != nil && !e.Mask.Held() {
		ok = false
	}
	e.unlock = 0
	if !ok {
		e.violations++
		return
	}
	e.pending = true
	e.pAddr, e.pData = e.addr, e.data
	e.busy = e.BusyPolls
	if e.busy <= 0 && !e.Stuck {
		e.commitLocked()
	}
}

func (e *EEPROM) WriteBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending {
		return false
	}
	if e.Stuck {
		return true
	}
	if e.busy > 0 {
		e.busy--
		if e.busy == 0 {
			e.commitLocked()
			return false
		}
		return true
	}
	return false
}

func (e *EEPROM) commitLocked() {
	e.mem[e.pAddr] = e.pData
	e.pending = false
	e.commits++
	// Flush errors surface on the next Open; the register model has no
	// error channel.
	_ = e.flushLocked()
}

// Violations counts writes rejected for breaking the write discipline.
func (e *EEPROM) Violations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violations
}

// Commits counts bytes written.
func (e *EEPROM) Commits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commits
}

// WriteEnabled reports the write-enable latch.
func (e *EEPROM) WriteEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wren
}

// Bytes returns a copy of memory.
func (e *EEPROM) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.mem...)
}

// Poke sets memory directly, bypassing the write discipline.
func (e *EEPROM) Poke(addr uint16, v byte) {
	e.mu.Lock()
	e.mem[addr] = v
	e.mu.Unlock()
}
