package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte("meeting notes\nbudget line items"), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "budget line items") {
		t.Errorf("text=%q", text)
	}
}

func TestExtractPlainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte{'o', 'k', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "ok") {
		t.Errorf("text=%q", text)
	}
	if strings.ContainsRune(text, 0xff) {
		t.Error("invalid bytes not replaced")
	}
}

func TestExtractUnknownExtensionFallsBackToPlain(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte("raw content"), ".log")
	if err != nil {
		t.Fatal(err)
	}
	if text != "raw content" {
		t.Errorf("text=%q", text)
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p w:rsidR="00A"><w:r><w:t>project kickoff</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">agenda items</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	e := NewExtractor()
	text, err := e.ExtractBytes(buildDOCX(t, docXML), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if text != "project kickoff agenda items" {
		t.Errorf("text=%q", text)
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_ = zw.Close()

	e := NewExtractor()
	if _, err := e.ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error for docx without word/document.xml")
	}
}

func TestExtractDOCXNotAZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestExtractExcel(t *testing.T) {
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "headcount")
	_ = f.SetCellValue("Sheet1", "B1", 12)
	_ = f.SetCellValue("Sheet1", "A2", "budget")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	text, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "headcount") || !strings.Contains(text, "budget") {
		t.Errorf("text=%q", text)
	}
}

func TestExtractReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# release checklist"), 0644); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor()
	text, err := e.Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "# release checklist" {
		t.Errorf("text=%q", text)
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
