package probe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Container is a detected video container format.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerMP4
	ContainerMKV
)

// String returns a human-readable format name
func (c Container) String() string {
	switch c {
	case ContainerMP4:
		return "MP4"
	case ContainerMKV:
		return "MKV"
	default:
		return "Unknown"
	}
}

var (
	ErrNotMKV     = errors.New("not an MKV file")
	ErrNotMP4     = errors.New("not an MP4 file")
	ErrIncomplete = errors.New("container is incomplete")
)

// EBML signature bytes (Matroska/WebM identifier)
var ebmlSignature = []byte{0x1A, 0x45, 0xDF, 0xA3}

const (
	mp4AtomHeader  = 8
	mp4MaxAtomScan = 4096 // top-level atoms walked before giving up
)

// CheckFile verifies that a file with a known container extension has a
// valid and complete header. Files of other types are not checked.
func CheckFile(path string) (Container, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".m4v", ".mov", ".mkv", ".webm":
	default:
		return ContainerUnknown, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ContainerUnknown, err
	}

	return DetectContainer(f, info.Size(), path)
}

// DetectContainer identifies the container of r using the file name as a
// hint. A file whose extension promises a container it does not hold, or
// whose MP4 atoms run past the end of the data, is reported as an error.
func DetectContainer(r io.ReaderAt, size int64, name string) (Container, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v", ".mov":
		if err := checkMP4(r, size); err != nil {
			return ContainerUnknown, err
		}
		return ContainerMP4, nil
	case ".mkv", ".webm":
		if err := checkMKV(r); err != nil {
			return ContainerUnknown, err
		}
		return ContainerMKV, nil
	}

	if checkMP4(r, size) == nil {
		return ContainerMP4, nil
	}
	if checkMKV(r) == nil {
		return ContainerMKV, nil
	}
	return ContainerUnknown, nil
}

// checkMKV verifies the EBML signature (0x1A 0x45 0xDF 0xA3).
func checkMKV(r io.ReaderAt) error {
	buf := make([]byte, len(ebmlSignature))
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return err
	}
	if n < len(buf) {
		return ErrNotMKV
	}
	for i := range ebmlSignature {
		if buf[i] != ebmlSignature[i] {
			return ErrNotMKV
		}
	}
	return nil
}

// checkMP4 walks the top-level atoms. They must start with a known atom,
// contain moov and end exactly at size.
func checkMP4(r io.ReaderAt, size int64) error {
	buf := make([]byte, 16)
	n, err := r.ReadAt(buf[:mp4AtomHeader], 0)
	if err != nil && err != io.EOF {
		return err
	}
	if n < mp4AtomHeader || !isValidMP4Atom(string(buf[4:8])) {
		return ErrNotMP4
	}

	var (
		pos     int64
		hasMoov bool
	)
	for i := 0; pos < size && i < mp4MaxAtomScan; i++ {
		n, err := r.ReadAt(buf[:mp4AtomHeader], pos)
		if err != nil && err != io.EOF {
			return err
		}
		if n < mp4AtomHeader {
			return fmt.Errorf("%w: truncated atom header at %d", ErrIncomplete, pos)
		}

		atomSize := int64(binary.BigEndian.Uint32(buf[:4]))
		atomType := string(buf[4:8])

		// Extended size (size=1 means 64-bit size follows)
		if atomSize == 1 {
			n, err := r.ReadAt(buf[8:16], pos+8)
			if err != nil && err != io.EOF {
				return err
			}
			if n < 8 {
				return fmt.Errorf("%w: truncated atom header at %d", ErrIncomplete, pos)
			}
			atomSize = int64(binary.BigEndian.Uint64(buf[8:16]))
		}

		// size=0 means atom extends to end of file
		if atomSize == 0 {
			atomSize = size - pos
		}
		if atomSize < mp4AtomHeader {
			return fmt.Errorf("%w: invalid %q atom size %d", ErrIncomplete, atomType, atomSize)
		}
		if atomType == "moov" {
			hasMoov = true
		}

		pos += atomSize
	}

	if pos > size {
		return fmt.Errorf("%w: atoms need %d bytes, file has %d", ErrIncomplete, pos, size)
	}
	if !hasMoov {
		return fmt.Errorf("%w: moov atom not found", ErrIncomplete)
	}
	return nil
}

// isValidMP4Atom checks if the atom type is a valid MP4 top-level atom.
func isValidMP4Atom(atomType string) bool {
	switch atomType {
	case "ftyp", "moov", "mdat", "free", "skip", "wide", "pnot", "pict":
		return true
	default:
		return false
	}
}
