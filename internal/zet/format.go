// Package zet implements the native ".zet" capture container: a fixed
//32-byte header followed by zero or more framed message records, all
// little-endian. See Writer.writeHeader and Writer.Write for the exact wire
// layout.
package zet

const (
	// magicLen is the length of the file signature, including the
	// terminating NUL.
	magicLen = 4
	// HeaderSize is the fixed on-disk header size in bytes.
	HeaderSize = 32
	// Version is the only format version this package writes or reads.
	Version = 1
)

var magic = [magicLen]byte{'Z', 'E', 'T', 0x00}
