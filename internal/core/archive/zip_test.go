package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func readZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open produced archive: %v", err)
	}
	return zr
}

func TestAssembleContainsEntriesPlusReport(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Name: "2024/05/01/a.mp3", FilePath: writeSource(t, dir, "a", "first")},
		{Name: "2024/05/02/b.gsm", FilePath: writeSource(t, dir, "b", "second")},
	}

	var buf bytes.Buffer
	if err := Assemble(entries, "all good\n", &buf); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	zr := readZip(t, buf.Bytes())
	if len(zr.File) != 3 {
		t.Fatalf("archive has %d entries, want entries + report = 3", len(zr.File))
	}
	if zr.File[len(zr.File)-1].Name != ReportEntryName {
		t.Fatalf("last entry = %q, want %q", zr.File[len(zr.File)-1].Name, ReportEntryName)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open first entry: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "first" {
		t.Fatalf("entry content = %q", content)
	}
}

func TestAssembleEmptyBatchStillCarriesReport(t *testing.T) {
	var buf bytes.Buffer
	if err := Assemble(nil, "nothing survived\n", &buf); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	zr := readZip(t, buf.Bytes())
	if len(zr.File) != 1 || zr.File[0].Name != ReportEntryName {
		t.Fatalf("archive entries = %v, want only the report", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "nothing survived\n" {
		t.Fatalf("report content = %q", content)
	}
}

func TestAssembleFailsOnMissingSourceFile(t *testing.T) {
	var buf bytes.Buffer
	err := Assemble([]Entry{{Name: "x.gsm", FilePath: filepath.Join(t.TempDir(), "gone")}}, "r", &buf)
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestAssembleToFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a", "payload")
	dest := filepath.Join(dir, "out.zip")

	if err := AssembleToFile([]Entry{{Name: "a.gsm", FilePath: src}}, "done\n", dest); err != nil {
		t.Fatalf("AssembleToFile: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr := readZip(t, data)
	if len(zr.File) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(zr.File))
	}
}
