package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
)

func allowDir(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return dir, cfg
}

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../nota.md"},
		{"deep traversal", "../../etc/nota.md"},
		{"mid-path traversal", "/tmp/../etc/nota.md"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, cfg)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestValidatePath_Extensions(t *testing.T) {
	dir, cfg := allowDir(t)

	for _, ext := range []string{".md", ".html", ".doc", ".txt", ".json", ".xlsx"} {
		assert.NoError(t, ValidatePath(filepath.Join(dir, "nota"+ext), PathCheckWrite, cfg), ext)
	}
	for _, ext := range []string{"", ".exe", ".jsonl", ".sh"} {
		err := ValidatePath(filepath.Join(dir, "nota"+ext), PathCheckWrite, cfg)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "%q: %v", ext, err)
	}

	err := ValidatePath(filepath.Join(dir, "payload.xlsx"), PathCheckRead, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "only json/txt are read")
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	dir, cfg := allowDir(t)

	err := ValidatePath(filepath.Join(dir, "sub", "nota.md"), PathCheckWrite, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "subdirectories are refused")

	err = ValidatePath(filepath.Join(t.TempDir(), "nota.md"), PathCheckWrite, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	cfg.AllowUnsafePaths = true
	assert.NoError(t, ValidatePath(filepath.Join(t.TempDir(), "nota.md"), PathCheckWrite, cfg))
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	dir, cfg := allowDir(t)
	target := filepath.Join(t.TempDir(), "real.md")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0600))
	link := filepath.Join(dir, "link.md")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidatePath(link, PathCheckWrite, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	cfg.AllowUnsafePaths = true
	err = ValidatePath(link, PathCheckWrite, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "unsafe mode still refuses symlinks")
}

func TestWriteFile(t *testing.T) {
	dir, cfg := allowDir(t)
	path := filepath.Join(dir, "Nota_Ana.md")

	require.NoError(t, WriteFile(path, []byte("primera"), cfg))
	require.NoError(t, WriteFile(path, []byte("segunda"), cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "segunda", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFile_InvalidPath(t *testing.T) {
	_, cfg := allowDir(t)
	err := WriteFile("../nota.md", []byte("x"), cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReadPayloadFile(t *testing.T) {
	dir, cfg := allowDir(t)
	path := filepath.Join(dir, "paciente.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nombre":"Ana"}`), 0600))

	got, err := ReadPayloadFile(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"nombre":"Ana"}`, got)

	_, err = ReadPayloadFile(filepath.Join(dir, "falta.json"), cfg)
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ana_López", "Ana_López"},
		{"../../etc/passwd", "etc-passwd"},
		{"a\x00b", "ab"},
		{"", "sin_nombre"},
		{"---", "sin_nombre"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeForFilename(tt.in), tt.in)
	}
}
