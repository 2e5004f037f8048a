package session

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count in binary (1024-based) units with one
// decimal place. Counts below one kilobyte are shown as whole bytes.
// Examples: 0 -> "0 B", 1536 -> "1.5 KB", 1048576 -> "1.0 MB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	unit := ""
	for _, u := range byteUnits {
		value /= 1024
		unit = u
		if value < 1024 {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", value, unit)
}
