package upload

import (
	"fmt"
	"os"
	"path/filepath"
)

// Open opens a local file for upload. The caller closes the returned closer
// once Submit has returned.
func Open(path string) (*File, func() error, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		fh.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{Name: filepath.Base(path), Size: info.Size(), Body: fh}, fh.Close, nil
}
