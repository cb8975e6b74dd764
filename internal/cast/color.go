package cast

import (
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// RGB is an 8-bit-per-channel color.
type RGB [3]uint8

// Packed returns the color as 0xRRGGBB.
func (c RGB) Packed() uint32 {
	return uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2])
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	s := strconv.FormatUint(uint64(c.Packed()), 16)
	return "#" + strings.Repeat("0", 6-len(s)) + s
}

// ToRGB converts a color argument: "#rrggbb", "#rgb" or a packed number.
// Unparseable values are black.
func ToRGB(v any) RGB {
	if s, ok := v.(string); ok && strings.HasPrefix(s, "#") {
		return hexToRGB(s)
	}
	n := ToNumber(v)
	packed, err := safecast.Conv[uint32](int64(n) & 0xFFFFFF)
	if err != nil {
		return RGB{}
	}
	return RGB{uint8(packed >> 16), uint8(packed >> 8), uint8(packed)}
}

func hexToRGB(s string) RGB {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}
	}
	return RGB{uint8(n >> 16), uint8(n >> 8), uint8(n)}
}
