package ports

// FileStore persists a single opaque blob for the sandbox.
type FileStore interface {
	// Save overwrites the stored contents. The parent directory must exist.
	Save(data []byte) error

	// Read returns the stored contents, or an empty slice if nothing has
	// been saved yet.
	Read() ([]byte, error)

	// Path returns the location of the backing file.
	Path() string
}

// Decompressor expands a compressed bundle.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}
