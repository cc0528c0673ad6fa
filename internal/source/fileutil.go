package source

import (
	"fmt"
	"io"
	"os"
)

// writeTemp copies reader into a new temp file. maxBytes <= 0 disables the
// size bound.
func writeTemp(dir, pattern string, reader io.Reader, maxBytes int64) (string, int64, error) {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create staging file: %w", err)
	}
	localPath := file.Name()

	src := reader
	if maxBytes > 0 {
		src = io.LimitReader(reader, maxBytes+1)
	}
	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("write staging file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close staging file: %w", closeErr)
	case maxBytes > 0 && written > maxBytes:
		err = fmt.Errorf("source exceeds %d bytes", maxBytes)
	}
	if err != nil {
		_ = os.Remove(localPath)
		return "", 0, err
	}
	return localPath, written, nil
}
