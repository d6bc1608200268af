package actuator

// wordBytes is one grid word on the wire: 24 data bits, 3 SPI bits each.
const wordBytes = 9

// encodeWord expands bits 31..8 of w, MSB first, into the WS2812 timing
// patterns 110 (one) and 100 (zero).
func encodeWord(w uint32) [wordBytes]byte {
	var out [wordBytes]byte
	pos := 0
	for bit := 31; bit >= 8; bit-- {
		pattern := byte(0b100)
		if w&(1<<uint(bit)) != 0 {
			pattern = 0b110
		}
		for k := 2; k >= 0; k-- {
			if pattern&(1<<uint(k)) != 0 {
				out[pos/8] |= 0x80 >> uint(pos%8)
			}
			pos++
		}
	}
	return out
}
