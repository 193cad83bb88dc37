package source

import (
	"context"
	"io"
	"os"
)

// FileSource reads a graph document from the local filesystem. The path
// "-" reads standard input.
type FileSource struct {
	Path string
	// MaxBytes bounds the file size; zero means no limit.
	MaxBytes int64
	stdin    io.Reader
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, stdin: os.Stdin}
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "-" {
		return readLimited(s.stdin, s.MaxBytes)
	}
	if s.MaxBytes <= 0 {
		return os.ReadFile(s.Path)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, s.MaxBytes)
}

func (s *FileSource) String() string {
	if s.Path == "-" {
		return "stdin"
	}
	return "file:" + s.Path
}
