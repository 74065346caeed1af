package storage

import (
	"regexp"
	"strings"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	valid := []string{"report.pdf", "scan.JPG", "photo.jpeg", "logo.png", "plan.doc", "plan.docx", "sheet.xls", "sheet.xlsx"}
	for _, name := range valid {
		if err := ValidateFilename(name); err != nil {
			t.Errorf("%q rejected: %v", name, err)
		}
	}

	invalid := []string{"noextension", "malware.exe", "archive.zip", "page.html", "notes.txt", ""}
	for _, name := range invalid {
		if err := ValidateFilename(name); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(MaxFileSize); err != nil {
		t.Errorf("file at the limit rejected: %v", err)
	}
	if err := ValidateFileSize(MaxFileSize + 1); err == nil {
		t.Error("oversized file accepted")
	}
	if err := ValidateFileSize(0); err != nil {
		t.Errorf("empty file rejected: %v", err)
	}
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"report.PDF":    "pdf",
		"a.b.c.docx":    "docx",
		"noextension":   "",
		"trailing.dot.": "",
	}
	for name, want := range cases {
		if got := FileExtension(name); got != want {
			t.Errorf("FileExtension(%q) = %q, want %q", name, got, want)
		}
	}
}

var objectKeyRe = regexp.MustCompile(`^loans/CL-20240615-0001/financial_statement/\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z-[0-9a-f]{8}\.pdf$`)

func TestObjectKeyLayout(t *testing.T) {
	key := ObjectKey("CL-20240615-0001", "financial_statement", "재무제표.pdf")

	if !objectKeyRe.MatchString(key) {
		t.Fatalf("object key %q does not match the expected layout", key)
	}
	if strings.ContainsAny(key, ": ") {
		t.Errorf("object key %q contains unsafe characters", key)
	}
}

func TestObjectKeySuffixVaries(t *testing.T) {
	a := ObjectKey("CL-20240615-0001", "other", "x.pdf")
	b := ObjectKey("CL-20240615-0001", "other", "x.pdf")
	if a == b {
		t.Error("two keys for the same file collided")
	}
}
