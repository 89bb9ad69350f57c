// Package models loads binary glTF assets and resolves them into a graph of
// meshes, skins and animations ready to be turned into scene nodes.
package models

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/qmuntal/gltf"
)

const (
	glbMagic      = 0x46546C67 // "glTF"
	glbVersion    = 2
	glbHeaderSize = 12
	chunkHeader   = 8

	chunkJSON = 0x4E4F534A
	chunkBIN  = 0x004E4942
)

// ErrFormat matches every *FormatError.
var ErrFormat = errors.New("invalid glb")

// FormatError reports a malformed binary container.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "invalid glb: " + e.Reason }

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErrorf(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Container is a parsed GLB file. Body is the binary chunk, nil when the
// file has none; it aliases the input slice.
type Container struct {
	Content *gltf.Document
	JSON    []byte
	Body    []byte
}

// Open reads and parses a .glb file.
func Open(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glb: %w", err)
	}
	c, err := ParseGLB(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// ParseGLB splits a binary glTF container into its JSON and BIN chunks and
// decodes the JSON. Chunks of unknown type are skipped.
func ParseGLB(data []byte) (*Container, error) {
	if len(data) < glbHeaderSize {
		return nil, formatErrorf("%d bytes is shorter than the header", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != glbMagic {
		return nil, formatErrorf("bad magic %#08x", magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return nil, formatErrorf("unsupported version %d", v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	total = min(total, len(data))

	c := &Container{}
	offset := glbHeaderSize
	for offset+chunkHeader <= total {
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		kind := binary.LittleEndian.Uint32(data[offset+4:])
		start := offset + chunkHeader
		end := start + length
		if length < 0 || end > len(data) {
			return nil, formatErrorf("chunk %#08x at %d runs past the end", kind, offset)
		}
		switch kind {
		case chunkJSON:
			if c.JSON == nil {
				c.JSON = data[start:end]
			}
		case chunkBIN:
			if c.Body == nil {
				c.Body = data[start:end]
			}
		default:
			Logger().Debug("skipping glb chunk", "type", kind, "length", length)
		}
		offset = end
	}
	if c.JSON == nil {
		return nil, formatErrorf("no JSON chunk")
	}

	doc := new(gltf.Document)
	if err := json.Unmarshal(c.JSON, doc); err != nil {
		return nil, fmt.Errorf("decode gltf json: %w", err)
	}
	c.Content = doc
	return c, nil
}
