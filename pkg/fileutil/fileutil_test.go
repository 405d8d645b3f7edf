package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchPaths(t *testing.T) {
	tmpDir := t.TempDir()

	file1 := filepath.Join(tmpDir, "file1.yaml")
	file2 := filepath.Join(tmpDir, "file2.yaml")
	if err := os.WriteFile(file2, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			"skips missing and finds next file",
			[]string{file1, file2},
			file2,
			false,
		},
		{
			"directories do not count",
			[]string{tmpDir},
			"",
			true,
		},
		{
			"handles empty path list",
			[]string{},
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SearchPaths(tt.paths)
			if (err != nil) != tt.wantErr {
				t.Errorf("SearchPaths() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SearchPaths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchPathsOptional(t *testing.T) {
	tmpDir := t.TempDir()

	file1 := filepath.Join(tmpDir, "file1.yaml")
	if err := os.WriteFile(file1, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if got := SearchPathsOptional([]string{file1}); got != file1 {
		t.Errorf("SearchPathsOptional() = %v, want %v", got, file1)
	}
	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "missing.yaml")}); got != "" {
		t.Errorf("SearchPathsOptional() = %v, want empty string", got)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := DefaultConfigPaths("deplostatus.yaml")

	if len(paths) != 3 {
		t.Fatalf("DefaultConfigPaths() returned %d paths, want 3", len(paths))
	}

	for i, path := range paths {
		if !strings.HasSuffix(path, "deplostatus.yaml") {
			t.Errorf("DefaultConfigPaths()[%d] = %v, should end with 'deplostatus.yaml'", i, path)
		}
	}

	if paths[1] != filepath.Join("config", "deplostatus.yaml") {
		t.Errorf("DefaultConfigPaths()[1] = %v, want config/deplostatus.yaml", paths[1])
	}

	if !strings.HasPrefix(paths[2], "/etc/deplostatus") {
		t.Errorf("DefaultConfigPaths()[2] should start with /etc/deplostatus, got %v", paths[2])
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", testFile, true},
		{"directory", tmpDir, false},
		{"missing", filepath.Join(tmpDir, "nope.txt"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileExists(tt.path); got != tt.want {
				t.Errorf("FileExists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
