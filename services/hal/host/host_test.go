package host

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Jagichan/RGBMoodLight/x/timex"
)

func writeSeq(e *EEPROM, addr uint16, v byte) {
	e.SetAddress(addr)
	e.SetData(v)
	e.SetWriteEnable(true)
	e.Unlock(UnlockKey1)
	e.Unlock(UnlockKey2)
	e.StartWrite()
	for e.WriteBusy() {
	}
	e.SetWriteEnable(false)
}

func TestEEPROMCommitsOnlyWithUnlock(t *testing.T) {
	e := NewEEPROM(8)
	writeSeq(e, 3, 0x42)
	if got := e.Bytes()[3]; got != 0x42 {
		t.Fatalf("mem[3]=%#x want 0x42", got)
	}

	// Intervening access voids the unlock.
	e.SetAddress(4)
	e.SetData(9)
	e.SetWriteEnable(true)
	e.Unlock(UnlockKey1)
	e.SetData(9)
	e.Unlock(UnlockKey2)
	e.StartWrite()
	if e.Bytes()[4] != 0 || e.Violations() != 1 {
		t.Fatalf("write without contiguous unlock must be rejected (violations=%d)", e.Violations())
	}

	// No write-enable.
	e.SetWriteEnable(false)
	e.Unlock(UnlockKey1)
	e.Unlock(UnlockKey2)
	e.StartWrite()
	if e.Violations() != 2 {
		t.Fatalf("write without WREN must be rejected")
	}
}

func TestEEPROMRequiresMaskWhenAttached(t *testing.T) {
	e := NewEEPROM(4)
	m := &Mask{}
	e.Mask = m
	writeSeq(e, 0, 7)
	if e.Bytes()[0] != 0 || e.Violations() != 1 {
		t.Fatal("unmasked write must be rejected")
	}
	s := m.Disable()
	writeSeq(e, 0, 7)
	m.Restore(s)
	if e.Bytes()[0] != 7 {
		t.Fatal("masked write must commit")
	}
}

func TestEEPROMFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ee.bin")
	e, err := OpenEEPROM(path, 16)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writeSeq(e, 1, 0xAB)

	again, err := OpenEEPROM(path, 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.SetAddress(1)
	again.StartRead()
	if again.Data() != 0xAB {
		t.Fatalf("reloaded byte=%#x", again.Data())
	}
}

func TestStuckEEPROMStaysBusy(t *testing.T) {
	e := NewEEPROM(4)
	e.Stuck = true
	e.SetWriteEnable(true)
	e.Unlock(UnlockKey1)
	e.Unlock(UnlockKey2)
	e.StartWrite()
	for i := 0; i < 100; i++ {
		if !e.WriteBusy() {
			t.Fatal("stuck device reported completion")
		}
	}
}

func TestI2CEEPROM(t *testing.T) {
	d := NewI2CEEPROM(0x50, 64)
	if err := d.Tx(0x50, []byte{0, 2, 0x11, 0x22}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 3)
	if err := d.Tx(0x50, []byte{0, 1}, r); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0xFF || r[1] != 0x11 || r[2] != 0x22 {
		t.Fatalf("read back %x", r)
	}
	if err := d.Tx(0x51, []byte{0, 0}, r); err == nil {
		t.Fatal("wrong address must fail")
	}
}

func TestMaskSerialisesInterruptBody(t *testing.T) {
	m := &Mask{}
	s := m.Disable()
	if inner := m.Disable(); inner != 0 {
		t.Fatal("nested Disable must report already-disabled")
	}
	ran := make(chan struct{})
	go m.Do(func() { close(ran) })
	select {
	case <-ran:
		t.Fatal("interrupt body ran while masked")
	case <-time.After(20 * time.Millisecond):
	}
	m.Restore(s)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("interrupt body never ran after Restore")
	}
}

func TestWatchdogExpiry(t *testing.T) {
	clk := timex.NewFake(time.Unix(0, 0))
	w := NewWatchdog(clk)
	_ = w.Configure(2400 * time.Millisecond)
	_ = w.Start()
	clk.Advance(2 * time.Second)
	w.Update()
	clk.Advance(2 * time.Second)
	if w.Expired() {
		t.Fatal("kicked watchdog expired")
	}
	clk.Advance(time.Second)
	if !w.Expired() {
		t.Fatal("watchdog must expire without kicks")
	}
}
