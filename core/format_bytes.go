package core

import "fmt"

// Binary byte size units.
const (
	BytesPerKB int64 = 1 << 10
	BytesPerMB int64 = 1 << 20
	BytesPerGB int64 = 1 << 30
)

var byteUnits = []struct {
	size   int64
	suffix string
}{
	{BytesPerGB, "GB"},
	{BytesPerMB, "MB"},
	{BytesPerKB, "KB"},
}

// FormatBytes renders a byte count as "512 B", "1.50 KB" or "3.20 MB".
// Negative counts render as "0 B".
func FormatBytes(bytes int64) string {
	for _, u := range byteUnits {
		if bytes >= u.size {
			return fmt.Sprintf("%.2f %s", float64(bytes)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", max(bytes, 0))
}
