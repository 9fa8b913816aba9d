// Package cpumask implements fixed-width CPU affinity bitmasks in the
// textual form the kernel uses for Cpus_allowed: hex digits grouped in
// 32-bit words, most significant group first, groups separated by commas.
// The width is fixed once from the online CPU count; masks are backed by a
// plain word arena rather than a big integer.
package cpumask

import (
	"strings"
)

const wordBits = 64

// Mask is a set of logical CPUs with a fixed bit width.
type Mask struct {
	words []uint64
	bits  int
}

// New returns an empty mask able to hold bits CPUs.
func New(bits int) *Mask {
	if bits < 1 {
		bits = 1
	}
	return &Mask{
		words: make([]uint64, (bits+wordBits-1)/wordBits),
		bits:  bits,
	}
}

// AllOnline returns the mask with every one of the n online CPUs set. This
// is computed once at sampler start and ANDed into every parsed mask.
func AllOnline(n int) *Mask {
	m := New(n)
	for i := 0; i < n; i++ {
		m.Set(i)
	}
	return m
}

// Bits returns the fixed width of the mask.
func (m *Mask) Bits() int { return m.bits }

// Set marks CPU i as a member. Out-of-range bits are ignored.
func (m *Mask) Set(i int) {
	if i < 0 || i >= m.bits {
		return
	}
	m.words[i/wordBits] |= 1 << uint(i%wordBits)
}

// Test reports whether CPU i is a member.
func (m *Mask) Test(i int) bool {
	if i < 0 || i >= m.bits {
		return false
	}
	return m.words[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// And intersects m with o in place and returns m.
func (m *Mask) And(o *Mask) *Mask {
	for i := range m.words {
		if i < len(o.words) {
			m.words[i] &= o.words[i]
		} else {
			m.words[i] = 0
		}
	}
	return m
}

// IsZero reports whether no CPU is set.
func (m *Mask) IsZero() bool {
	for _, w := range m.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether two masks have the same members, ignoring width.
func (m *Mask) Equal(o *Mask) bool {
	n := len(m.words)
	if len(o.words) > n {
		n = len(o.words)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(m.words) {
			a = m.words[i]
		}
		if i < len(o.words) {
			b = o.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of m.
func (m *Mask) Clone() *Mask {
	c := New(m.bits)
	copy(c.words, m.words)
	return c
}

// HexWidth returns the number of hex digits needed to print a mask of the
// given bit width. Renderers pad the affinity column to at least this.
func HexWidth(bits int) int {
	if bits < 1 {
		bits = 1
	}
	return (bits + 3) / 4
}

func hexDigit(v uint64) byte {
	const digits = "0123456789abcdef"
	return digits[v&0xf]
}

// Hex returns the mask as a plain hex string without group separators,
// left-trimmed to its significant digits ("0" when empty).
func (m *Mask) Hex() string {
	var b strings.Builder
	started := false
	for d := HexWidth(m.bits) - 1; d >= 0; d-- {
		nib := (m.words[d*4/wordBits] >> uint(d*4%wordBits)) & 0xf
		if nib == 0 && !started && d > 0 {
			continue
		}
		started = true
		b.WriteByte(hexDigit(nib))
	}
	return b.String()
}

// Text encodes the mask in the kernel's comma-grouped form: 32-bit groups of
// 8 hex digits, most significant first, with leading all-zero groups
// collapsed. The result round-trips through Parse.
func (m *Mask) Text() string {
	groups := (m.bits + 31) / 32
	var parts []string
	for g := groups - 1; g >= 0; g-- {
		w := m.words[g/2]
		if g%2 == 1 {
			w >>= 32
		}
		w &= 0xffffffff
		if w == 0 && len(parts) == 0 && g > 0 {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, trimHex32(uint32(w)))
		} else {
			parts = append(parts, fullHex32(uint32(w)))
		}
	}
	return strings.Join(parts, ",")
}

func fullHex32(w uint32) string {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigit(uint64(w))
		w >>= 4
	}
	return string(buf[:])
}

func trimHex32(w uint32) string {
	s := fullHex32(w)
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// Parse decodes the kernel comma/hex affinity text into a mask of the given
// width. Commas only delimit 32-bit groups, so they are stripped and the
// remaining digits are consumed least significant first. The result is not
// intersected with the online set; callers do that explicitly.
func Parse(text string, bits int) (*Mask, error) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil, ErrBadMask
	}
	m := New(bits)
	bit := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, err := nibble(s[i])
		if err != nil {
			return nil, err
		}
		for j := 0; j < 4; j++ {
			if v&(1<<uint(j)) != 0 {
				m.Set(bit + j)
			}
		}
		bit += 4
	}
	return m, nil
}

func nibble(c byte) (uint64, error) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), nil
	case c >= 'a' && c <= 'f':
		return uint64(c-'a') + 10, nil
	case c >= 'A' && c <= 'F':
		return uint64(c-'A') + 10, nil
	}
	return 0, ErrBadMask
}
