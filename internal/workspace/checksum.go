package workspace

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Checksum is the content hash of a solution snapshot. Checksums are
// comparable and usable as map keys.
type Checksum [blake2b.Size256]byte

// Zero is the checksum of nothing; no loaded solution has it.
var Zero Checksum

// String returns the checksum as lowercase hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// Short returns the first 12 hex characters, for logs.
func (c Checksum) Short() string {
	return c.String()[:12]
}

// IsZero reports whether c is the zero checksum.
func (c Checksum) IsZero() bool {
	return c == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (c Checksum) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Checksum) UnmarshalText(text []byte) error {
	parsed, err := ParseChecksum(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseChecksum parses a hex-encoded checksum.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(raw) != len(c) {
		return c, fmt.Errorf("invalid checksum %q: want %d bytes, got %d", s, len(c), len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// ComputeChecksum hashes everything that can change analysis results: host
// analyzer references, and per project its identity, language, analyzer
// references and ordered documents.
func ComputeChecksum(s *Solution) Checksum {
	h, _ := blake2b.New256(nil) // only fails for oversized keys

	writeRefs(h, s.AnalyzerReferences)
	for _, p := range s.Projects {
		writeString(h, p.ID)
		writeString(h, p.Name)
		writeString(h, p.Language)
		writeRefs(h, p.AnalyzerReferences)
		writeLen(h, len(p.Documents))
		for _, d := range p.Documents {
			writeString(h, d.ID)
			writeString(h, d.Path)
			writeString(h, d.Text)
		}
	}

	var c Checksum
	copy(c[:], h.Sum(nil))
	return c
}

func writeRefs(h hash.Hash, refs []AnalyzerReference) {
	writeLen(h, len(refs))
	for _, r := range refs {
		writeString(h, r.Kind)
		writeString(h, r.Name)
		writeString(h, r.Path)
	}
}

// writeString length-prefixes s so adjacent fields cannot collide.
func writeString(h hash.Hash, s string) {
	writeLen(h, len(s))
	_, _ = h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, _ = h.Write(buf[:])
}
