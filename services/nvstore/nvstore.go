// Package nvstore persists the user colour in byte-addressable non-volatile
// memory.
//
// Two backends are provided: Cells drives an on-chip data EEPROM through its
// register interface and the unlock, commit and poll write sequence; AT24
// drives a 24Cxx serial EEPROM over I²C. ColorStore lays the duty triple out
// one byte per channel on top of either.
package nvstore

import (
	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/mathx"
)

// ByteStore is byte-addressable persistent memory.
type ByteStore interface {
	ReadByte(addr uint16) (byte, error)
	WriteByte(addr uint16, v byte) error
}

// Addresses holds the store address of each channel.
type Addresses [types.NumChannels]uint16

// DefaultAddresses puts red, green and blue at 0, 1 and 2.
var DefaultAddresses = Addresses{0, 1, 2}

// ColorStore keeps one duty byte per channel. All-zero means no stored colour.
type ColorStore struct {
	bs   ByteStore
	addr Addresses
}

func NewColorStore(bs ByteStore, addr Addresses) *ColorStore {
	return &ColorStore{bs: bs, addr: addr}
}

// Load reads the stored triple. ok is false when nothing is stored: all
// channels zero, or all 0xFF as left by a blank serial EEPROM. Values above
// the maximum duty are clamped.
func (s *ColorStore) Load() (t types.Triple, ok bool, err error) {
	var raw [types.NumChannels]byte
	for ch, a := range s.addr {
		if raw[ch], err = s.bs.ReadByte(a); err != nil {
			return types.Triple{}, false, err
		}
	}
	if raw == [types.NumChannels]byte{0xFF, 0xFF, 0xFF} {
		return types.Triple{}, false, nil
	}
	for ch, b := range raw {
		t[ch] = types.Duty(mathx.Min(b, types.MaxDuty))
	}
	return t, !t.IsZero(), nil
}

// Save writes every channel, stopping at the first failure.
func (s *ColorStore) Save(t types.Triple) error {
	for ch, a := range s.addr {
		if err := s.bs.WriteByte(a, byte(t[ch])); err != nil {
			return err
		}
	}
	return nil
}

// Erase writes the "no colour" sentinel.
func (s *ColorStore) Erase() error { return s.Save(types.Triple{}) }

func checkAddr(op string, addr, size uint16) error {
	if addr >= size {
		return &errcode.E{C: errcode.InvalidAddress, Op: op}
	}
	return nil
}
