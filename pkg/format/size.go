package format

import (
	gounits "github.com/docker/go-units"
)

// ParseHumanSize parses a human-readable size string (e.g., "500MB", "1GiB") into bytes
func ParseHumanSize(size string) (int64, error) {
	return gounits.RAMInBytes(size)
}

// HumanSize renders a byte count the way ParseHumanSize reads it.
func HumanSize(size int64) string {
	return gounits.BytesSize(float64(size))
}
