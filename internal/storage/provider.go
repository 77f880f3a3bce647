// Package storage defines the vault file-system abstraction.
package storage

import "time"

// NoteInfo is a lightweight description of a vault file.
type NoteInfo struct {
	Path      string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations. Paths are always
// relative to the vault root.
type Provider interface {
	// List returns every .md file under dir.
	List(dir string) ([]NoteInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content at path.
	Write(path string, content []byte) error
}
