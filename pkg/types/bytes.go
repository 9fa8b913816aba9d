package types

import "fmt"

// Bytes is a uint64 wrapper representing a memory size in bytes.
type Bytes uint64

// FromKB converts a kilobyte count (as reported by the status record) to Bytes.
func FromKB(kb uint64) Bytes { return Bytes(kb * 1024) }

// FromPages converts a page count (as reported by the stat record) to Bytes.
func FromPages(pages int64, pageSize int) Bytes {
	if pages < 0 {
		return 0
	}
	return Bytes(uint64(pages) * uint64(pageSize))
}

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
