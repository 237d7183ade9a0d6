package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrTooLarge        = errors.New("document exceeds upload limit")
)

const (
	KindPDF  = "pdf"
	KindText = "text"

	DefaultMaxBytes = 10 << 20
	sniffLen        = 512
)

// Upload describes a user supplied file before extraction.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, up Upload) (string, error)
}

type Config struct {
	MaxBytes int64
	// TempDir is where uploads are staged; os.TempDir() when empty.
	TempDir string
}

// FileExtractor stages each upload in its own temp file which is removed
// before Extract returns.
type FileExtractor struct {
	maxBytes int64
	tempDir  string
}

func NewFileExtractor(cfg Config) *FileExtractor {
	max := cfg.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	return &FileExtractor{maxBytes: max, tempDir: cfg.TempDir}
}

// Extract returns the document text. An empty string with a nil error means
// the file held no extractable text.
func (e *FileExtractor) Extract(ctx context.Context, up Upload) (string, error) {
	if up.Body == nil {
		return "", fmt.Errorf("extract %q: empty body", up.Filename)
	}

	path, size, err := e.stage(up)
	if path != "" {
		defer removeStaged(path)
	}
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kind, err := detectKind(up, path)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = readPDF(path)
	case KindText:
		text, err = readText(path)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s %q: %w", kind, up.Filename, err)
	}

	text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
	logx.Debug().
		Str("filename", up.Filename).
		Str("kind", kind).
		Int64("bytes", size).
		Int("chars", utf8.RuneCountInString(text)).
		Msg("document extracted")
	return text, nil
}

// stage copies the body to a temp file. The returned path is set whenever a
// file was created, even on error, so the caller can remove it.
func (e *FileExtractor) stage(up Upload) (string, int64, error) {
	f, err := os.CreateTemp(e.tempDir, "upload-*"+safeExt(up.Filename))
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	n, copyErr := io.Copy(f, io.LimitReader(up.Body, e.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		return path, n, fmt.Errorf("write temp file: %w", copyErr)
	case closeErr != nil:
		return path, n, fmt.Errorf("close temp file: %w", closeErr)
	case n > e.maxBytes:
		return path, n, ErrTooLarge
	}
	return path, n, nil
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Str("path", path).Msg("failed to remove temp upload")
	}
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}

// detectKind trusts the extension, then the declared content type, then the
// file's leading bytes.
func detectKind(up Upload, path string) (string, error) {
	switch safeExt(up.Filename) {
	case ".pdf":
		return KindPDF, nil
	case ".txt", ".text", ".md":
		return KindText, nil
	}

	ct := strings.ToLower(strings.TrimSpace(up.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return KindPDF, nil
	case strings.HasPrefix(ct, "text/"):
		return KindText, nil
	}

	head, err := readHead(path)
	if err != nil {
		return "", err
	}
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return KindPDF, nil
	}
	if strings.HasPrefix(http.DetectContentType(head), "text/plain") {
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, up.Filename)
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPDF concatenates the plain text of every page.
func readPDF(path string) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
