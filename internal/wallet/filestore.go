package wallet

import "time"

// ImportMode selects how a picked file reaches the document folder.
type ImportMode int

const (
	// ImportCopy leaves the source in place (add flow).
	ImportCopy ImportMode = iota
	// ImportMove removes the source once it is placed (save flow).
	ImportMove
)

func (m ImportMode) String() string {
	if m == ImportMove {
		return "move"
	}
	return "copy"
}

// FileKind is a coarse classification of a stored document file.
type FileKind string

const (
	KindImage  FileKind = "image"
	KindPDF    FileKind = "pdf"
	KindOffice FileKind = "office"
	KindOther  FileKind = "other"
)

// FileInfo describes a file held in the document folder.
type FileInfo struct {
	Name    string
	Size    int64
	Kind    FileKind
	Pages   int // page count for PDFs, 0 otherwise
	ModTime time.Time
}

// FileStore moves document files in and out of the application's folder.
// Failures are reported wrapped with ErrStorage.
type FileStore interface {
	// EnsureFolder creates path if it is absent. Idempotent.
	EnsureFolder(path string) error

	// ImportFile places source at destFolder/desiredName and returns the final path.
	// The destination only becomes visible once fully written.
	ImportFile(source, destFolder, desiredName string, mode ImportMode) (string, error)

	// DeleteFile removes path. A missing file is not an error.
	DeleteFile(path string) error

	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)

	// ListFiles returns the names of regular files directly inside folder.
	ListFiles(folder string) ([]string, error)

	// Inspect returns size, kind and, for PDFs, the page count of path.
	Inspect(path string) (*FileInfo, error)
}
