package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/fsutil"
)

// Archive layout:
//
//	magic (4) | version (u16) | index length (u32) | index | entry payloads
//
// The index maps each path to the offset and length of its msgpack-encoded
// entry inside the payload section, so loading decodes only the index and a
// Get decodes a single entry. A version mismatch discards the file.
const (
	archiveName    = "cache.bin"
	archiveVersion = uint16(1)
)

var archiveMagic = [4]byte{'K', 'T', 'B', 'C'}

const archiveHeaderLen = 4 + 2 + 4

type indexSpan struct {
	Offset uint64 `msgpack:"offset"`
	Length uint64 `msgpack:"length"`
}

// Path returns the archive file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, archiveName)
}

// Load restores entries from the on-disk archive. A missing file is not an
// error; a corrupt or version-mismatched file is discarded and reported.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cacheErr("load", err)
	}

	raw, err := parseArchive(data)
	if err != nil {
		logging.Default().Warn("discarding cache archive",
			logging.FieldPath, s.Path(),
			logging.FieldError, err)
		_ = os.Remove(s.Path())
		return err
	}

	s.entries = make(map[string]*Entry)
	s.raw = raw
	logging.Default().Debug("loaded cache archive",
		logging.FieldEntries, len(raw))
	return nil
}

func parseArchive(data []byte) (map[string][]byte, error) {
	if len(data) < archiveHeaderLen {
		return nil, corrupted("load", "archive truncated at %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], archiveMagic[:]) {
		return nil, corrupted("load", "bad magic")
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != archiveVersion {
		return nil, corrupted("load", "archive version %d, want %d", version, archiveVersion)
	}
	indexLen := binary.LittleEndian.Uint32(data[6:archiveHeaderLen])
	if int(archiveHeaderLen+indexLen) > len(data) {
		return nil, corrupted("load", "index length %d exceeds file", indexLen)
	}

	var index map[string]indexSpan
	if err := msgpack.Unmarshal(data[archiveHeaderLen:archiveHeaderLen+indexLen], &index); err != nil {
		return nil, corrupted("load", "index: %v", err)
	}

	payloads := data[archiveHeaderLen+indexLen:]
	raw := make(map[string][]byte, len(index))
	for path, span := range index {
		if span.Offset+span.Length > uint64(len(payloads)) {
			return nil, corrupted("load", "entry %q out of bounds", path)
		}
		raw[path] = payloads[span.Offset : span.Offset+span.Length]
	}
	return raw, nil
}

// Save flushes all entries to disk with a temp-file-plus-rename commit.
func (s *Store) Save() error {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return nil
	}

	paths := make([]string, 0, len(s.entries)+len(s.raw))
	for p := range s.entries {
		paths = append(paths, p)
	}
	for p := range s.raw {
		if _, ok := s.entries[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var payloads bytes.Buffer
	index := make(map[string]indexSpan, len(paths))
	for _, p := range paths {
		var payload []byte
		if e, ok := s.entries[p]; ok {
			var err error
			payload, err = encodeEntry(e)
			if err != nil {
				s.mu.RUnlock()
				return cacheErr("save", fmt.Errorf("encode %q: %w", p, err))
			}
		} else {
			payload = s.raw[p]
		}
		index[p] = indexSpan{
			Offset: uint64(payloads.Len()),
			Length: uint64(len(payload)),
		}
		payloads.Write(payload)
	}
	s.mu.RUnlock()

	indexBytes, err := msgpack.Marshal(index)
	if err != nil {
		return cacheErr("save", err)
	}

	var out bytes.Buffer
	out.Grow(archiveHeaderLen + len(indexBytes) + payloads.Len())
	out.Write(archiveMagic[:])
	var header [archiveHeaderLen - 4]byte
	binary.LittleEndian.PutUint16(header[0:2], archiveVersion)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(indexBytes)))
	out.Write(header[:])
	out.Write(indexBytes)
	out.Write(payloads.Bytes())

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return cacheErr("save", err)
	}
	if err := fsutil.WriteAtomic(context.Background(), s.Path(), out.Bytes(), 0); err != nil {
		return cacheErr("save", err)
	}
	return nil
}

func encodeEntry(e *Entry) ([]byte, error) {
	return msgpack.Marshal(e)
}

func decodeEntry(payload []byte) (*Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return nil, corrupted("decode", "%v", err)
	}
	return &e, nil
}
