package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
)

// ReportEntryName is the archive entry holding the processing report. It
// is always present, success or not, so the archive describes itself.
const ReportEntryName = "report.txt"

// Entry is one file to place into the archive under a computed relative
// path.
type Entry struct {
	// Name is the path inside the archive, date-partitioned, already
	// sanitized.
	Name string
	// FilePath is where the bytes live on disk.
	FilePath string
}

// Assemble streams every entry plus the trailing report into sink as a zip
// at best compression. The report is written after all entries and the
// trailer after the report; finalizing earlier would truncate the archive.
// A sink write failure is terminal for the caller, not retryable.
func Assemble(entries []Entry, report string, sink io.Writer) error {
	zw := zip.NewWriter(sink)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, entry := range entries {
		if err := addFile(zw, entry); err != nil {
			zw.Close()
			return err
		}
	}

	w, err := zw.Create(ReportEntryName)
	if err != nil {
		zw.Close()
		return fmt.Errorf("create report entry: %w", err)
	}
	if _, err := io.WriteString(w, report); err != nil {
		zw.Close()
		return fmt.Errorf("write report entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// AssembleToFile writes the archive to path, for async flows that hand the
// result over later.
func AssembleToFile(entries []Entry, report string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if err := Assemble(entries, report, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addFile(zw *zip.Writer, entry Entry) error {
	src, err := os.Open(entry.FilePath)
	if err != nil {
		return fmt.Errorf("open %s for archiving: %w", entry.FilePath, err)
	}
	defer src.Close()

	w, err := zw.Create(entry.Name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write archive entry %s: %w", entry.Name, err)
	}
	return nil
}
