package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// WriteParquet stores processed records as the columnar cache at path. The
// file is written to a temporary sibling first and renamed into place, so a
// reader never sees a partial cache.
func WriteParquet(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write parquet cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move parquet cache into place: %w", err)
	}
	return nil
}

// ReadParquet loads processed records from the columnar cache.
func ReadParquet(path string) ([]Record, error) {
	records, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet cache %s: %w", path, err)
	}
	return records, nil
}
