// Package artifact loads and atomically replaces the generated files the
// corrector works on.
package artifact

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Error records a failed read or write of an artifact.
type Error struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Document is the full content of an artifact as read from disk.
type Document struct {
	Path    string
	Content string
	Mode    fs.FileMode
	Digest  string
}

// Load reads the whole file at path.
func Load(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, &Error{Op: "read", Path: path, Err: err}
	}
	if info.IsDir() {
		return Document{}, &Error{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &Error{Op: "read", Path: path, Err: err}
	}
	return Document{
		Path:    path,
		Content: string(data),
		Mode:    info.Mode().Perm(),
		Digest:  Digest(data),
	}, nil
}

// Digest returns the hex BLAKE3-256 of data.
func Digest[T string | []byte](data T) string {
	sum := blake3.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Persist replaces the file at path with content. The content is written to a
// sibling "<name>.part" file first and renamed over path, so a failed write
// leaves the original untouched. An existing file keeps its permissions;
// mode is used for new files.
func Persist(path string, content []byte, mode fs.FileMode) (err error) {
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	if mode == 0 {
		mode = 0o644
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &Error{Op: "write", Path: path, Err: err}
		}
	}

	tmp := path + ".part"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(content); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err = f.Sync(); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err = f.Close(); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err = os.Rename(tmp, path); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}
