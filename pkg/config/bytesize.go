package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes that accepts human-readable values ("256MiB", "1GB").
type ByteSize uint64

// ParseByteSize parses a human-readable size. Both SI ("1GB") and IEC ("1GiB")
// suffixes are accepted; "Mi"/"Gi" shorthand is treated as IEC.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(trimmed, "i") {
		trimmed += "B"
	}

	n, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// String renders the size with IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
