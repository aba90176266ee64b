package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// Encoding tells WriteString how to interpret its content.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingBase64
)

func (e Encoding) String() string {
	if e == EncodingBase64 {
		return "base64"
	}
	return "utf8"
}

// Writer persists string content to a path.
type Writer interface {
	WriteString(path, content string, enc Encoding) error
}

// FileStore writes to the local filesystem. Existing files are overwritten.
type FileStore struct {
	Perm os.FileMode // zero means 0o644
}

// WriteString writes content to path, creating parent directories. Base64
// content is decoded first; padding is optional.
func (s FileStore) WriteString(path, content string, enc Encoding) error {
	var data []byte
	switch enc {
	case EncodingUTF8:
		data = []byte(content)
	case EncodingBase64:
		decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(content, "="))
		if err != nil {
			return fmt.Errorf("decode base64 content: %w", err)
		}
		data = decoded
	default:
		return fmt.Errorf("unknown encoding: %d", enc)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	debug.Verbose("Storage: wrote %d bytes to %s (%s)", len(data), path, enc)
	return nil
}
