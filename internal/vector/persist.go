package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Index file layout (little-endian): 4-byte magic, uint32 format version,
// uint32 dimension, uint32 count, then per entry: uint32 key length, key
// bytes, dimension*4 vector bytes.
const (
	indexMagic         = "SDXI"
	indexFormatVersion = 1

	// maxIndexKeyLen bounds a single persisted key. Record keys are short
	// ("type:id"), so anything near this limit is corruption, not data.
	maxIndexKeyLen = 64 << 10
)

// Save serializes the index to path. The file is written to a temporary
// sibling and renamed into place, so a crash mid-write never leaves a
// half-written file observable to Load. The snapshot is taken under the
// read lock, the same discipline as searches.
func (ix *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)

	ix.mu.RLock()
	err = ix.writeTo(w)
	ix.mu.RUnlock()
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish index file: %w", err)
	}
	return nil
}

func (ix *FlatIndex) writeTo(w io.Writer) error {
	if _, err := w.Write([]byte(indexMagic)); err != nil {
		return err
	}
	header := []uint32{indexFormatVersion, uint32(ix.dimensions), uint32(len(ix.keys))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for i, key := range ix.keys {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(key))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(key)); err != nil {
			return err
		}
		if _, err := w.Write(EncodeFloat32s(ix.vectors[i])); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the index at path. Returns ErrIndexNotFound when no file
// exists, ErrDimensionMismatch when the persisted dimension disagrees
// with dimensions (the caller should rebuild from the record store, not
// crash), and ErrIndexCorrupt for anything undecodable.
func Load(path string, dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrIndexCorrupt, err)
	}
	if string(magic) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrIndexCorrupt, magic)
	}
	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: short header: %v", ErrIndexCorrupt, err)
		}
	}
	if version != indexFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrIndexCorrupt, version)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("%w: file has %d, configured %d", ErrDimensionMismatch, dim, dimensions)
	}

	// The declared count is untrusted until the entries decode; cap the
	// preallocation so a corrupt header cannot force a huge allocation.
	capHint := int(count)
	if capHint > 1<<16 {
		capHint = 1 << 16
	}
	ix := &FlatIndex{
		dimensions: dimensions,
		keys:       make([]string, 0, capHint),
		vectors:    make([][]float32, 0, capHint),
	}
	vecBuf := make([]byte, dimensions*4)
	for i := uint32(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrIndexCorrupt, i, err)
		}
		if keyLen > maxIndexKeyLen {
			return nil, fmt.Errorf("%w: entry %d key length %d", ErrIndexCorrupt, i, keyLen)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, fmt.Errorf("%w: entry %d key: %v", ErrIndexCorrupt, i, err)
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return nil, fmt.Errorf("%w: entry %d vector: %v", ErrIndexCorrupt, i, err)
		}
		vec, err := DecodeFloat32s(vecBuf)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d vector: %v", ErrIndexCorrupt, i, err)
		}
		ix.keys = append(ix.keys, string(keyBytes))
		ix.vectors = append(ix.vectors, vec)
	}
	// Anything after the declared entries means the count and the payload
	// disagree, which is the same corruption state as a truncated file.
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after %d entries", ErrIndexCorrupt, count)
	}
	return ix, nil
}
