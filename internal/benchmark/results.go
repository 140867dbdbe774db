package benchmark

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"snapshot_number", "elapsed_time"}

// AppendResult appends one timing row to the CSV at path. The header is
// written only when the file does not exist yet, so repeated runs
// accumulate rows under a single header.
func AppendResult(path string, number int, elapsed time.Duration) error {
	_, statErr := os.Stat(path)
	newFile := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return fmt.Errorf("write results header: %w", err)
		}
	}
	row := []string{strconv.Itoa(number), strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64)}
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("write results row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush results: %w", err)
	}
	return f.Close()
}
