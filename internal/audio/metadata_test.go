package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Darude - Sandstorm.wav")
	if err := WriteFile(path, sine(8000, 8000, 300, 0.3), 8000, 16); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Name != "Darude - Sandstorm" {
		t.Errorf("Expected name from file name, got %q", f.Name)
	}
	if f.Checksum == 0 {
		t.Error("Expected non-zero checksum")
	}
	if len(f.Samples) != 8000 || f.SampleRate != 8000 {
		t.Errorf("Unexpected buffer: %d samples at %d Hz", len(f.Samples), f.SampleRate)
	}

	again, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if again.Checksum != f.Checksum {
		t.Error("Checksum changed between loads of the same file")
	}

	other := filepath.Join(dir, "other.wav")
	if err := WriteFile(other, sine(8000, 8000, 301, 0.3), 8000, 16); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	o, err := Load(other, DefaultOptions())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if o.Checksum == f.Checksum {
		t.Error("Different files produced the same checksum")
	}
}

func TestChecksum(t *testing.T) {
	a, err := Checksum(bytes.NewReader([]byte("abc")))
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	b, _ := Checksum(bytes.NewReader([]byte("abd")))
	if a == b {
		t.Error("Expected different checksums")
	}
}

func TestMetadataName(t *testing.T) {
	tests := []struct {
		meta     Metadata
		expected string
	}{
		{Metadata{}, ""},
		{Metadata{Artist: "Darude"}, ""},
		{Metadata{Title: "Sandstorm"}, "Sandstorm"},
		{Metadata{Title: "Sandstorm", Artist: "Darude"}, "Darude - Sandstorm"},
	}
	for _, tt := range tests {
		if got := tt.meta.Name(); got != tt.expected {
			t.Errorf("%+v.Name() = %q, expected %q", tt.meta, got, tt.expected)
		}
	}
}

func TestReadMetadataUntagged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.wav")
	if err := WriteFile(path, sine(4000, 8000, 300, 0.3), 8000, 16); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	m, err := ReadMetadata(f)
	if err != nil {
		t.Fatalf("Expected no error for untagged stream, got %v", err)
	}
	if m.Name() != "" {
		t.Errorf("Expected empty metadata, got %+v", m)
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("/a/b/track.one.wav"); got != "track.one" {
		t.Errorf("BaseName = %q", got)
	}
}
