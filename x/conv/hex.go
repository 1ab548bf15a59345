package conv

const hexd = "0123456789ABCDEF"

// U32Hex writes 8-digit uppercase hex without 0x, zero-padded.
func U32Hex(buf []byte, n uint32) []byte {
	return uHex(buf, n, 8)
}

// U24Hex writes 6-digit uppercase hex, the RRGGBB form of a colour.
func U24Hex(buf []byte, n uint32) []byte {
	return uHex(buf, n&0xFFFFFF, 6)
}

func uHex(buf []byte, n uint32, digits int) []byte {
	if len(buf) < digits {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < digits; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	return buf[i:]
}

// HexNibble decodes one hex digit of either case. Any other byte decodes as 0
// and ok is false; callers that want lenient parsing may ignore ok.
func HexNibble(c byte) (v uint8, ok bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// AccumulateHex folds digits into a value by shifting four bits per byte.
// Unrecognised bytes contribute 0. Only the low 32 bits are kept.
func AccumulateHex(digits []byte) uint32 {
	var v uint32
	for _, c := range digits {
		n, _ := HexNibble(c)
		v = v<<4 | uint32(n)
	}
	return v
}
