package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/pcameron/webscan/internal/scanner"
)

// KindOCRText marks text recovered from a screenshot rather than the DOM.
const KindOCRText = "ocr_text"

// OCR runs optical character recognition over the page's screenshot
// artifact and applies the grammar rule set to the recognized text. This
// catches language issues baked into images, which the DOM-based
// analyzers cannot see.
type OCR struct {
	binary string
	logger *zap.Logger
}

// NewOCR builds an OCR analyzer shelling out to the given tesseract
// binary; pass "" for the default lookup on PATH.
func NewOCR(binary string, logger *zap.Logger) *OCR {
	if binary == "" {
		binary = "tesseract"
	}
	return &OCR{binary: binary, logger: logger}
}

// Name implements scanner.Analyzer.
func (a *OCR) Name() string { return "ocr" }

// Analyze recognizes text in the screenshot artifact and reports
// grammar findings over it. Pages without a screenshot, or hosts
// without the OCR binary installed, skip the stage.
func (a *OCR) Analyze(ctx context.Context, input scanner.AnalyzerInput) ([]scanner.Finding, error) {
	ref, ok := input.Artifacts["screenshot"]
	if !ok {
		return nil, scanner.ErrStageSkipped
	}
	if _, err := exec.LookPath(a.binary); err != nil {
		a.logger.Debug("ocr binary not found; skipping", zap.String("binary", a.binary))
		return nil, scanner.ErrStageSkipped
	}

	text, err := a.recognize(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	findings := AnalyzeText(a.Name(), input.Page.URL, text)
	for i := range findings {
		findings[i].Kind = KindOCRText + ":" + findings[i].Kind
	}
	return findings, nil
}

func (a *OCR) recognize(ctx context.Context, imagePath string) (string, error) {
	// "stdout" makes tesseract write recognized text to stdout instead
	// of an output file.
	cmd := exec.CommandContext(ctx, a.binary, imagePath, "stdout")
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", imagePath, err, strings.TrimSpace(errBuf.String()))
	}
	return out.String(), nil
}
