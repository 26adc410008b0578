package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestOpenCorrupt(t *testing.T) {
	_, err := Open([]byte("definitely not a zip"), DefaultLimits)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestEntry(t *testing.T) {
	a, err := Open(buildZip(t, map[string]string{
		"content.xml":     "<package/>",
		"Images/logo.png": "png",
	}), DefaultLimits)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	tests := []struct {
		name   string
		entry  string
		wantOK bool
		want   string
	}{
		{name: "present", entry: "content.xml", wantOK: true, want: "<package/>"},
		{name: "nested", entry: "Images/logo.png", wantOK: true, want: "png"},
		{name: "absent", entry: "missing.xml", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ok, err := a.Entry(tt.entry)
			if err != nil {
				t.Fatalf("entry: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if string(data) != tt.want {
				t.Errorf("data = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestEntryTooLarge(t *testing.T) {
	a, err := Open(buildZip(t, map[string]string{
		"big.bin": strings.Repeat("x", 64),
	}), Limits{MaxEntryBytes: 16})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, ok, err := a.Entry("big.bin")
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("err = %v, want ErrEntryTooLarge", err)
	}
}

func TestTooManyEntries(t *testing.T) {
	_, err := Open(buildZip(t, map[string]string{
		"a": "1", "b": "2", "c": "3",
	}), Limits{MaxEntries: 2})
	if !errors.Is(err, ErrTooManyFiles) {
		t.Fatalf("err = %v, want ErrTooManyFiles", err)
	}
}

func TestLookupEscapedName(t *testing.T) {
	a, err := Open(buildZip(t, map[string]string{
		"Images/my%20photo.jpg": "jpg",
	}), DefaultLimits)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	name, ok := a.Lookup("my photo.jpg", "Images/my photo.jpg")
	if !ok {
		t.Fatal("lookup failed")
	}
	if name != "Images/my%20photo.jpg" {
		t.Errorf("name = %q", name)
	}

	if _, ok := a.Lookup("", "nothing.jpg"); ok {
		t.Error("lookup of missing entry succeeded")
	}
}
