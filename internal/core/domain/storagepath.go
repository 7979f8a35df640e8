package domain

import (
	"fmt"
	"path"
	"strings"
)

// StorageLayout derives artifact paths for one (engine, filename) pair.
// Paths are pure functions of their inputs: no randomness, no hidden state.
// Re-running the same upload with the same name therefore overwrites prior
// artifacts instead of accumulating new ones.
//
// The layout is an external compatibility contract:
//
//	raw/<engineId>/<originalFilename>
//	preprocessed/<engineId>/<base>_page_<N>.png
//	output/<engineId>/<base>.md
//
// All paths are slash-separated and relative to the artifact store root.
type StorageLayout struct {
	EngineID string
	Filename string
}

// NewStorageLayout builds a layout for a sanitized filename.
func NewStorageLayout(engineID, filename string) StorageLayout {
	return StorageLayout{EngineID: engineID, Filename: filename}
}

// RawPath is where the unmodified upload is stored.
func (l StorageLayout) RawPath() string {
	return path.Join("raw", l.EngineID, l.Filename)
}

// PreprocessedPath is where the deskewed image for the given 1-based page
// index is stored. Indexes are not zero-padded; consumers sorting the
// directory must sort numerically.
func (l StorageLayout) PreprocessedPath(index int) string {
	return path.Join("preprocessed", l.EngineID, fmt.Sprintf("%s_page_%d.png", l.Base(), index))
}

// OutputPath is where the assembled markdown document is stored.
func (l StorageLayout) OutputPath() string {
	return path.Join("output", l.EngineID, l.Base()+".md")
}

// Base is the filename without its final extension.
func (l StorageLayout) Base() string {
	ext := path.Ext(l.Filename)
	return strings.TrimSuffix(l.Filename, ext)
}

// CleanFilename reduces an untrusted upload name to a bare file name:
// directory components and traversal sequences are stripped. Returns
// ErrInvalidFilename via ErrEmptyInput semantics when nothing usable remains.
func CleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(path.Clean(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: unusable filename", ErrEmptyInput)
	}
	return name, nil
}
