package extract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seerrors "github.com/fileseer/fileseer/internal/errors"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path     string
		expected ContentType
	}{
		{"notes.txt", TypeText},
		{"README.md", TypeText},
		{"report.pdf", TypeText},
		{"main.go", TypeText},
		{"photo.PNG", TypeImage},
		{"scan.jpeg", TypeImage},
		{"diagram.webp", TypeImage},
		{"movie.mp4", TypeUnsupported},
		{"archive.zip", TypeUnsupported},
		{"noextension", TypeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectContentType(tt.path))
		})
	}
}

func TestExtract_TextFile(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("meeting notes from tuesday"))

	e := New(Options{})
	content, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, TypeText, content.Type)
	assert.Equal(t, "meeting notes from tuesday", content.Text)
	assert.Len(t, content.Hash, 64)
	assert.Equal(t, int64(26), content.Size)
}

func TestExtract_HashIsStableAndContentSensitive(t *testing.T) {
	e := New(Options{})

	pathA := writeTempFile(t, "a.txt", []byte("same content"))
	pathB := writeTempFile(t, "b.txt", []byte("same content"))
	pathC := writeTempFile(t, "c.txt", []byte("different content"))

	a, err := e.Extract(context.Background(), pathA)
	require.NoError(t, err)
	b, err := e.Extract(context.Background(), pathB)
	require.NoError(t, err)
	c, err := e.Extract(context.Background(), pathC)
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestExtract_ImageFile(t *testing.T) {
	path := writeTempFile(t, "photo.png", pngBytes(t))

	e := New(Options{})
	content, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, TypeImage, content.Type)
	assert.NotEmpty(t, content.Data)
	assert.Empty(t, content.Text)
}

func TestExtract_CorruptImageFails(t *testing.T) {
	path := writeTempFile(t, "broken.png", []byte("this is not a png"))

	e := New(Options{})
	_, err := e.Extract(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeImageDecode, seerrors.GetCode(err))
}

func TestExtract_UnsupportedTypeIsNotAnError(t *testing.T) {
	path := writeTempFile(t, "movie.mp4", []byte{0x00, 0x01, 0x02})

	e := New(Options{})
	content, err := e.Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, TypeUnsupported, content.Type)
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(Options{})
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "ghost.txt"))

	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeFileNotFound, seerrors.GetCode(err))
}

func TestExtract_BinaryMasqueradingAsTextFails(t *testing.T) {
	path := writeTempFile(t, "fake.txt", []byte{'h', 'i', 0x00, 0x01, 0x02})

	e := New(Options{})
	_, err := e.Extract(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeFileCorrupt, seerrors.GetCode(err))
}

func TestExtract_SizeLimit(t *testing.T) {
	path := writeTempFile(t, "big.txt", bytes.Repeat([]byte("x"), 1024))

	e := New(Options{MaxFileSize: 512})
	_, err := e.Extract(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeFileTooLarge, seerrors.GetCode(err))
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(Options{})
	_, err := e.Extract(ctx, "whatever.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncateUTF8_RespectsRuneBoundaries(t *testing.T) {
	s := "héllo wörld"
	out := truncateUTF8(s, 3)
	assert.LessOrEqual(t, len(out), 3)
	assert.True(t, len(out) == 0 || out[len(out)-1] < 0x80 || len(out) >= 2)

	// No truncation when under the cap
	assert.Equal(t, s, truncateUTF8(s, 100))
}

func TestCategoryForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Category
	}{
		{"report.pdf", CategoryDocument},
		{"notes.TXT", CategoryDocument},
		{"photo.jpg", CategoryImage},
		{"clip.mp4", CategoryVideo},
		{"song.flac", CategoryAudio},
		{"bundle.tar", CategoryArchive},
		{"main.go", CategoryCode},
		{"mystery.bin", CategoryOther},
		{"noext", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategoryForPath(tt.path))
		})
	}
}
