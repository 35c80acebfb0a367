// Package textsource provides the default TextSource implementation
// (spec §6 "Text-source interface", component A) using pdfcpu's content
// extraction, adapted from the teacher's PDF extractor service.
package textsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/interfaces"
)

// Extractor implements interfaces.TextSource using pdfcpu via a temp-file
// round trip (pdfcpu's extraction API works on paths, not byte buffers).
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.TextSource = (*Extractor)(nil)

// NewExtractor returns a pdfcpu-backed Extractor, creating its scratch
// directory under the OS temp root.
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "extractionengine-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText implements interfaces.TextSource. It writes pdfBytes to a
// scratch file, extracts per-page content with pdfcpu, and concatenates
// pages with a separator. Deterministic modulo whitespace normalization
// performed by pdfcpu itself, satisfying spec §6's determinism
// requirement.
func (e *Extractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%d_%d.pdf", os.Getpid(), len(pdfBytes)))
	if err := os.WriteFile(tempFile, pdfBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%d_%d", os.Getpid(), len(pdfBytes)))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		if e.logger != nil {
			e.logger.Warn().Err(err).Msg("pdfcpu content extraction failed, returning empty text")
		}
		return "", nil
	}

	files, _ := os.ReadDir(outDir)
	pageTexts := make(map[int]string, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
			continue
		}
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var builder strings.Builder
	for page := 1; page <= pageCount; page++ {
		if page > 1 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(strings.TrimSpace(pageTexts[page]))
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	return builder.String(), nil
}
