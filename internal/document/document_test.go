package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteFor(t *testing.T) {
	pagesDir := filepath.Join(t.TempDir(), "src", "pages")

	tests := []struct {
		name        string
		path        string
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name: "top level page",
			path: filepath.Join(pagesDir, "index.md"),
			want: "/index",
		},
		{
			name: "nested page",
			path: filepath.Join(pagesDir, "sales", "by-region.md"),
			want: "/sales/by-region",
		},
		{
			name:        "outside pages dir",
			path:        filepath.Join(pagesDir, "..", "other.md"),
			wantErr:     true,
			errContains: "is not inside",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RouteFor(pagesDir, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteHash(t *testing.T) {
	// md5("/index")
	assert.Equal(t, "e3ee8a3d01d8d6147afd0cb3f30176b1", RouteHash("/index"))
	assert.Len(t, RouteHash("/sales"), 32)

	assert.Equal(t, RouteHash("/sales"), RouteHash("/sales"), "Hash should be stable")
	assert.NotEqual(t, RouteHash("/sales"), RouteHash("/sales/index"), "Different routes should differ")
}

func TestLoad(t *testing.T) {
	pagesDir := t.TempDir()
	path := filepath.Join(pagesDir, "reports", "daily.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("# Daily"), 0o644))

	doc, err := Load(pagesDir, path)
	require.NoError(t, err)

	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "/reports/daily", doc.Route)
	assert.Equal(t, RouteHash("/reports/daily"), doc.ID)
	assert.Equal(t, []byte("# Daily"), doc.Text)

	// identifier does not depend on content
	require.NoError(t, os.WriteFile(path, []byte("# Changed"), 0o644))
	changed, err := Load(pagesDir, path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, changed.ID)
}

func TestLoad_Missing(t *testing.T) {
	pagesDir := t.TempDir()

	_, err := Load(pagesDir, filepath.Join(pagesDir, "missing.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read document")
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument("index.md"))
	assert.True(t, IsDocument("README.MD"))
	assert.False(t, IsDocument("index.svelte"))
	assert.False(t, IsDocument("md"))
}
