package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	newer := filepath.Join(dir, "chart.PDF")
	latest := filepath.Join(dir, "new.jpg")
	for _, p := range []string{old, newer, latest} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(old, now, now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(latest, now, now))

	got, err := FindLatest(dir, ImageExtensions)
	require.NoError(t, err)
	assert.Equal(t, latest, got)

	got, err = FindLatest(old, PDFExtensions)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatest(dir, []string{".mov"})
	assert.Error(t, err)
}

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc  NVIDIA NVENC H.264 encoder"))
	assert.Equal(t, "h264_videotoolbox", pickEncoder("h264_nvenc h264_videotoolbox"))
	assert.Equal(t, "libx264", pickEncoder("libx264 libx265"))
}

func TestCurrentProcess(t *testing.T) {
	st, err := CurrentProcess()
	require.NoError(t, err)
	assert.Positive(t, st.RSS)
	assert.Positive(t, st.Threads)
}
