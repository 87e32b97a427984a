package utils

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"photo.jpg", "photo"},
		{"/data/in/photo.JPG", "photo"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{".profile", ".profile"},
		{"dir/with.dot/file", "file"},
		{"trailing/", "trailing"},
	}

	for _, tt := range tests {
		got, err := FileStem(tt.path)
		if err != nil {
			t.Errorf("FileStem(%q) failed: %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FileStem(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileStemErrors(t *testing.T) {
	for _, path := range []string{"", ".", "..", "/", "a/.."} {
		if _, err := FileStem(path); !errors.Is(err, ErrNoFileStem) {
			t.Errorf("FileStem(%q): expected ErrNoFileStem, got %v", path, err)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		format    string
		outputDir string
		want      string
	}{
		{"beside source", "/in/cat.png", "jpg", "", "/in/cat_resized.jpg"},
		{"jpeg kept verbatim", "/in/cat.png", "jpeg", "", "/in/cat_resized.jpeg"},
		{"case kept verbatim", "/in/cat.png", "PNG", "", "/in/cat_resized.PNG"},
		{"output dir", "/in/cat.png", "tiff", "/out/x", "/out/x/cat_resized.tiff"},
		{"relative source", "cat.bmp", "gif", "", "cat_resized.gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OutputPath(filepath.FromSlash(tt.src), tt.format, filepath.FromSlash(tt.outputDir))
			if err != nil {
				t.Fatalf("OutputPath failed: %v", err)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolveOutputCreatesDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a", "b", "c")

	path, err := ResolveOutput("/in/face.jpg", "png", out)
	if err != nil {
		t.Fatalf("ResolveOutput failed: %v", err)
	}
	if path != filepath.Join(out, "face_resized.png") {
		t.Errorf("Unexpected path %s", path)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Errorf("Expected %s to be created: %v", out, err)
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	for i := 0; i < 2; i++ {
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir call %d failed: %v", i+1, err)
		}
	}
}

func TestEnsureDirConcurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shared", "parent")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureDir(dir)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent EnsureDir failed: %v", err)
		}
	}
}

func TestEnsureDirOverFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDir(filepath.Join(file, "sub")); err == nil {
		t.Error("Expected error creating a directory below a regular file")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat_resized.jpg")

	if err := WriteFileAtomic(path, []byte("first version"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("Expected replaced content, got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat_resized.png")

	contents := [][]byte{
		[]byte("short"),
		[]byte("a considerably longer payload than the other one"),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(data []byte) {
			defer wg.Done()
			if err := WriteFileAtomic(path, data, 0o644); err != nil {
				t.Errorf("WriteFileAtomic failed: %v", err)
			}
		}(contents[i%2])
	}
	wg.Wait()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(contents[0]) && string(got) != string(contents[1]) {
		t.Errorf("Expected one complete payload, got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected temporary files to be renamed away, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	if err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out.png"), []byte("x"), 0o644); err == nil {
		t.Error("Expected error writing into a missing directory")
	}
}
