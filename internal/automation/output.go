package automation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// maxNameAttempts bounds the numeric suffixes tried when a run's file name
// is already taken.
const maxNameAttempts = 100

// SummaryName is the file name of a successful run's output.
func SummaryName(stamp string) string { return "summary-" + stamp + ".txt" }

// ErrorLogName is the file name of a failed run's error record.
func ErrorLogName(stamp string) string { return "error-" + stamp + ".log" }

// writeNew creates dir/name and writes data to it. An existing file is never
// replaced: "summary-X.txt" becomes "summary-X-1.txt", "summary-X-2.txt" and
// so on. It returns the path actually written.
func writeNew(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = base + "-" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		_, werr := f.Write(data)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("create %s: %d names already taken", filepath.Join(dir, name), maxNameAttempts)
}
