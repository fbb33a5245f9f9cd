package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := MakeParentDir(path); err != nil {
		t.Fatalf("MakeParentDir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestListAudioFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.wav"))
	touch(t, filepath.Join(root, "a.WAV"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.wave"))
	touch(t, filepath.Join(root, ".cache", "hidden.wav"))

	files, err := ListAudioFiles(root)
	if err != nil {
		t.Fatalf("ListAudioFiles failed: %v", err)
	}
	expected := []string{
		filepath.Join(root, "a.WAV"),
		filepath.Join(root, "b.wav"),
		filepath.Join(root, "sub", "c.wave"),
	}
	if !reflect.DeepEqual(files, expected) {
		t.Errorf("ListAudioFiles = %v, expected %v", files, expected)
	}
}

func TestListAudioFilesMissingDir(t *testing.T) {
	if _, err := ListAudioFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.wav")
	touch(t, file)

	if !IsDir(dir) || IsDir(file) || IsDir(filepath.Join(dir, "missing")) {
		t.Error("IsDir returned the wrong answer")
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("Expected distinct run ids")
	}
	if len(a) != 36 {
		t.Errorf("Expected canonical uuid, got %q", a)
	}
	if got := ShortID(a); len(got) != 8 || got != a[:8] {
		t.Errorf("ShortID = %q", got)
	}
}
