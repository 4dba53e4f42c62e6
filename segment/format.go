package segment

import (
	"encoding/binary"
	"fmt"
	"io"
)

var (
	segmentMagic  = [4]byte{'L', 'X', 'G', '1'}
	dirMagic      = [4]byte{'L', 'X', 'D', '1'}
	footerMagic   = [4]byte{'L', 'X', 'F', '1'}
	formatVersion = uint16(1)
)

const (
	sectionMeta     = uint16(1)
	sectionDict     = uint16(2)
	sectionPostings = uint16(3)
	sectionStored   = uint16(4)
	sectionNorms    = uint16(5)
)

const (
	headerSize      = 12
	dirHeaderSize   = 12
	dirEntrySize    = 32
	footerSize      = 24
	maxCodecNameLen = 0xFFFF
)

// CorruptError indicates a structural or checksum violation in a segment
// blob. The read fails and surfaces the error instead of returning
// partial postings.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type CorruptError struct {
	Name   string
	Detail string
	cause  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt segment %q: %s", e.Name, e.Detail)
}

func (e *CorruptError) Unwrap() error { return e.cause }

func corruptf(name, format string, args ...any) *CorruptError {
	return &CorruptError{Name: name, Detail: fmt.Sprintf(format, args...)}
}

type section struct {
	typ  uint16
	data []byte
}

// writeContainer writes the self-describing segment container:
//
//  1. header (magic/version/codec name)
//  2. section payloads, back to back
//  3. directory (type/offset/length/CRC32 per section)
//  4. footer (directory offset/length)
func writeContainer(w io.Writer, codecName string, sections []section) (int64, error) {
	if len(codecName) > maxCodecNameLen {
		return 0, fmt.Errorf("segment codec name too long: %d", len(codecName))
	}

	var n int64

	var hdr [headerSize]byte
	copy(hdr[0:4], segmentMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], formatVersion)
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(len(codecName)))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(sections)))
	if _, err := w.Write(hdr[:]); err != nil {
		return n, err
	}
	n += headerSize
	if len(codecName) > 0 {
		if _, err := w.Write([]byte(codecName)); err != nil {
			return n, err
		}
		n += int64(len(codecName))
	}

	type dirEntry struct {
		typ      uint16
		checksum uint32
		offset   uint64
		length   uint64
	}
	entries := make([]dirEntry, 0, len(sections))

	for _, s := range sections {
		entries = append(entries, dirEntry{
			typ:      s.typ,
			checksum: checksum(s.data),
			offset:   uint64(n),
			length:   uint64(len(s.data)),
		})
		if _, err := w.Write(s.data); err != nil {
			return n, err
		}
		n += int64(len(s.data))
	}

	dirOff := uint64(n)
	var dh [dirHeaderSize]byte
	copy(dh[0:4], dirMagic[:])
	binary.LittleEndian.PutUint16(dh[4:6], formatVersion)
	binary.LittleEndian.PutUint32(dh[8:12], uint32(len(entries)))
	if _, err := w.Write(dh[:]); err != nil {
		return n, err
	}
	n += dirHeaderSize

	for _, e := range entries {
		var b [dirEntrySize]byte
		binary.LittleEndian.PutUint16(b[0:2], e.typ)
		binary.LittleEndian.PutUint32(b[4:8], e.checksum)
		binary.LittleEndian.PutUint64(b[8:16], e.offset)
		binary.LittleEndian.PutUint64(b[16:24], e.length)
		if _, err := w.Write(b[:]); err != nil {
			return n, err
		}
		n += dirEntrySize
	}
	dirLen := uint64(n) - dirOff

	var foot [footerSize]byte
	copy(foot[0:4], footerMagic[:])
	binary.LittleEndian.PutUint16(foot[4:6], formatVersion)
	binary.LittleEndian.PutUint64(foot[8:16], dirOff)
	binary.LittleEndian.PutUint64(foot[16:24], dirLen)
	if _, err := w.Write(foot[:]); err != nil {
		return n, err
	}
	n += footerSize

	return n, nil
}

// parseContainer validates the container in data and returns the codec
// name and each section's payload slice. Section slices alias data.
func parseContainer(name string, data []byte) (string, map[uint16][]byte, error) {
	if len(data) < headerSize+footerSize {
		return "", nil, corruptf(name, "truncated: %d bytes", len(data))
	}
	if [4]byte(data[0:4]) != segmentMagic {
		return "", nil, corruptf(name, "bad magic")
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return "", nil, corruptf(name, "unsupported format version %d", v)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[6:8]))
	sectionCount := int(binary.LittleEndian.Uint16(data[8:10]))
	if headerSize+nameLen > len(data) {
		return "", nil, corruptf(name, "codec name extends past end")
	}
	codecName := string(data[headerSize : headerSize+nameLen])

	foot := data[len(data)-footerSize:]
	if [4]byte(foot[0:4]) != footerMagic {
		return "", nil, corruptf(name, "missing footer")
	}
	if v := binary.LittleEndian.Uint16(foot[4:6]); v != formatVersion {
		return "", nil, corruptf(name, "unsupported footer version %d", v)
	}
	dirOff := binary.LittleEndian.Uint64(foot[8:16])
	dirLen := binary.LittleEndian.Uint64(foot[16:24])
	dataEnd := uint64(len(data) - footerSize)
	if dirLen < dirHeaderSize || dirOff > dataEnd || dirLen > dataEnd-dirOff {
		return "", nil, corruptf(name, "invalid directory range")
	}

	dir := data[dirOff : dirOff+dirLen]
	if [4]byte(dir[0:4]) != dirMagic {
		return "", nil, corruptf(name, "invalid directory magic")
	}
	entryCount := int(binary.LittleEndian.Uint32(dir[8:12]))
	if entryCount != sectionCount {
		return "", nil, corruptf(name, "directory entry count %d does not match header section count %d", entryCount, sectionCount)
	}
	if uint64(dirHeaderSize+entryCount*dirEntrySize) != dirLen {
		return "", nil, corruptf(name, "directory length mismatch")
	}

	sections := make(map[uint16][]byte, entryCount)
	for i := 0; i < entryCount; i++ {
		eb := dir[dirHeaderSize+i*dirEntrySize:]
		typ := binary.LittleEndian.Uint16(eb[0:2])
		sum := binary.LittleEndian.Uint32(eb[4:8])
		off := binary.LittleEndian.Uint64(eb[8:16])
		length := binary.LittleEndian.Uint64(eb[16:24])

		if _, exists := sections[typ]; exists {
			return "", nil, corruptf(name, "duplicate section type %d", typ)
		}
		if off < uint64(headerSize+nameLen) || off > dirOff || length > dirOff-off {
			return "", nil, corruptf(name, "invalid range for section type %d", typ)
		}
		payload := data[off : off+length]
		if actual := checksum(payload); actual != sum {
			return "", nil, &CorruptError{
				Name:   name,
				Detail: fmt.Sprintf("section type %d checksum mismatch", typ),
				cause:  &ChecksumMismatchError{Expected: sum, Actual: actual},
			}
		}
		sections[typ] = payload
	}

	return codecName, sections, nil
}
