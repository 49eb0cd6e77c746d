package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExportFeed writes the current feed (whichever tier serves it) to path as
// indented JSON. The result is usable as a seed file.
func (s *Service) ExportFeed(ctx context.Context, path string) (Source, error) {
	f, src, err := s.cache.Read(ctx)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode feed: %w", err)
	}
	b = append(b, '\n')
	if err := writeFileAtomically(path, bytes.NewReader(b)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return src, nil
}

func writeFileAtomically(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
