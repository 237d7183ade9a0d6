package documents

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T, max int64) (*FileExtractor, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileExtractor(Config{MaxBytes: max, TempDir: dir}), dir
}

func assertNoStagedFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp upload must be removed")
}

func TestExtract_PlainTextByExtension(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	text, err := ex.Extract(context.Background(), Upload{
		Filename: "notice.txt",
		Body:     strings.NewReader("  Rent increase of 2.3% effective March 1.\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Rent increase of 2.3% effective March 1.", text)
	assertNoStagedFiles(t, dir)
}

func TestExtract_PlainTextByContentType(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	text, err := ex.Extract(context.Background(), Upload{
		Filename:    "upload",
		ContentType: "text/plain; charset=utf-8",
		Body:        strings.NewReader("termination letter"),
	})
	require.NoError(t, err)

	assert.Equal(t, "termination letter", text)
	assertNoStagedFiles(t, dir)
}

func TestExtract_PlainTextBySniffing(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	text, err := ex.Extract(context.Background(), Upload{
		Filename: "blob",
		Body:     strings.NewReader("work permit approval letter"),
	})
	require.NoError(t, err)

	assert.Equal(t, "work permit approval letter", text)
	assertNoStagedFiles(t, dir)
}

func TestExtract_EmptyFileYieldsNoText(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	text, err := ex.Extract(context.Background(), Upload{Filename: "empty.txt", Body: strings.NewReader("   \n")})
	require.NoError(t, err)

	assert.Empty(t, text)
	assertNoStagedFiles(t, dir)
}

func TestExtract_UnsupportedType(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	_, err := ex.Extract(context.Background(), Upload{
		Filename:    "photo.png",
		ContentType: "image/png",
		Body:        strings.NewReader("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
	})
	require.ErrorIs(t, err, ErrUnsupportedType)
	assertNoStagedFiles(t, dir)
}

func TestExtract_MalformedPDFRemovesTempFile(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)

	_, err := ex.Extract(context.Background(), Upload{
		Filename: "notice.pdf",
		Body:     strings.NewReader("%PDF-1.4 this is not really a pdf"),
	})
	require.Error(t, err)
	assertNoStagedFiles(t, dir)
}

func TestExtract_TooLarge(t *testing.T) {
	ex, dir := newTestExtractor(t, 8)

	_, err := ex.Extract(context.Background(), Upload{
		Filename: "lease.txt",
		Body:     strings.NewReader("0123456789"),
	})
	require.ErrorIs(t, err, ErrTooLarge)
	assertNoStagedFiles(t, dir)
}

func TestExtract_CancelledContext(t *testing.T) {
	ex, dir := newTestExtractor(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Extract(ctx, Upload{Filename: "lease.txt", Body: strings.NewReader("text")})
	require.ErrorIs(t, err, context.Canceled)
	assertNoStagedFiles(t, dir)
}

func TestExtract_NilBody(t *testing.T) {
	ex, _ := newTestExtractor(t, 0)

	_, err := ex.Extract(context.Background(), Upload{Filename: "x.txt"})
	assert.Error(t, err)
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".pdf", safeExt("Notice.PDF"))
	assert.Equal(t, ".txt", safeExt("../../etc/lease.txt"))
	assert.Equal(t, "", safeExt("noext"))
	assert.Equal(t, "", safeExt("weird.extension-too-long"))
}
