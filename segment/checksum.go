package segment

import (
	"fmt"
	"hash/crc32"
)

// CRC32 (IEEE) guards every section against storage corruption. It is not
// cryptographically secure; it only detects accidental damage.

var crcTable = crc32.MakeTable(crc32.IEEE)

func checksum(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// ChecksumMismatchError reports a section whose stored CRC32 does not
// match the bytes read back.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}
