package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchPaths(t *testing.T) {
	tmpDir := t.TempDir()

	file1 := filepath.Join(tmpDir, "file1.env")
	file2 := filepath.Join(tmpDir, "file2.env")
	if err := os.WriteFile(file1, []byte("PORT=5000"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name    string
		paths   []string
		want    string
		wantErr bool
	}{
		{"finds first existing file", []string{file2, file1}, file1, false},
		{"returns error when no files exist", []string{file2}, "", true},
		{"skips directories", []string{tmpDir}, "", true},
		{"handles empty path list", []string{}, "", true},
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

func TestDefaultConfigPaths(t *testing.T) {
	paths := DefaultConfigPaths(".env")

	if len(paths) != 3 {
		t.Fatalf("DefaultConfigPaths() returned %d paths, want 3", len(paths))
	}

	for i, path := range paths {
		if !strings.HasSuffix(path, ".env") {
			t.Errorf("DefaultConfigPaths()[%d] = %v, should end with '.env'", i, path)
		}
	}

	if !strings.HasPrefix(paths[2], SystemConfigDir) {
		t.Errorf("DefaultConfigPaths()[2] should start with %s, got %v", SystemConfigDir, paths[2])
	}
}

func TestFindEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, "custom.env")
	if err := os.WriteFile(envFile, []byte("PORT=5000"), 0600); err != nil {
		t.Fatalf("Failed to create env file: %v", err)
	}

	t.Run("explicit path exists", func(t *testing.T) {
		got, err := FindEnvFile(envFile)
		if err != nil {
			t.Fatalf("FindEnvFile() error = %v", err)
		}
		if got != envFile {
			t.Errorf("FindEnvFile() = %v, want %v", got, envFile)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := FindEnvFile(filepath.Join(tmpDir, "missing.env")); err == nil {
			t.Error("FindEnvFile() should fail for a missing explicit path")
		}
	})

	t.Run("search finds local .env", func(t *testing.T) {
		wd, _ := os.Getwd()
		defer os.Chdir(wd)
		if err := os.Chdir(tmpDir); err != nil {
			t.Fatalf("Failed to chdir: %v", err)
		}
		if err := os.WriteFile(".env", []byte("PORT=5000"), 0600); err != nil {
			t.Fatalf("Failed to create .env: %v", err)
		}

		got, err := FindEnvFile("")
		if err != nil {
			t.Fatalf("FindEnvFile() error = %v", err)
		}
		if got != filepath.Join(".", ".env") {
			t.Errorf("FindEnvFile() = %v, want ./.env", got)
		}
	})
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
		{"nonexistent file", filepath.Join(tmpDir, "nonexistent.txt"), false},
		{"directory", tmpDir, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileExists(tt.path); got != tt.want {
				t.Errorf("FileExists() = %v, want %v", got, tt.want)
			}
		})
	}
}
