package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pcameron/webscan/internal/scanner"
)

func grammarInput(pageURL, body string) scanner.AnalyzerInput {
	return scanner.AnalyzerInput{
		Page: scanner.CrawledPage{
			URL:         pageURL,
			Status:      scanner.FetchSuccess,
			ContentType: "text/html",
			Body:        []byte(body),
		},
	}
}

func TestGrammar_Analyze(t *testing.T) {
	a := NewGrammar()

	t.Run("flags common misspellings", func(t *testing.T) {
		input := grammarInput("http://example.com/a",
			"<html><body><p>We will definately recieve your order.</p></body></html>")

		findings, err := a.Analyze(context.Background(), input)

		require.NoError(t, err)
		require.Len(t, findings, 2)
		for _, f := range findings {
			require.Equal(t, KindMisspelling, f.Kind)
			require.Equal(t, "grammar", f.Analyzer)
		}
	})

	t.Run("flags repeated words and stray punctuation", func(t *testing.T) {
		input := grammarInput("http://example.com/b",
			"<html><body><p>This is is fine,, mostly.</p></body></html>")

		findings, err := a.Analyze(context.Background(), input)

		require.NoError(t, err)
		kinds := make([]string, 0, len(findings))
		for _, f := range findings {
			kinds = append(kinds, f.Kind)
		}
		require.Contains(t, kinds, KindRepeatedWord)
		require.Contains(t, kinds, KindDoublePunct)
	})

	t.Run("flags lowercase sentence starts", func(t *testing.T) {
		input := grammarInput("http://example.com/c",
			"<html><body><p>Our team ships weekly. the releases are stable.</p></body></html>")

		findings, err := a.Analyze(context.Background(), input)

		require.NoError(t, err)
		require.Len(t, findings, 1)
		require.Equal(t, KindUncapitalized, findings[0].Kind)
	})

	t.Run("clean text yields no findings", func(t *testing.T) {
		input := grammarInput("http://example.com/d",
			"<html><body><p>Our team ships weekly. The releases are stable.</p></body></html>")

		findings, err := a.Analyze(context.Background(), input)

		require.NoError(t, err)
		require.Empty(t, findings)
	})

	t.Run("prefers the text artifact over the body", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		path := filepath.Join(dir, "page.txt")
		content := "URL: http://example.com/e\nTitle: X\n" +
			strings.Repeat("=", 70) + "\n\nThis page is teh best.\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		input := grammarInput("http://example.com/e", "<html><body>Nothing wrong here.</body></html>")
		input.Artifacts = map[string]scanner.ArtifactRef{
			"text": {Extractor: "text", Path: path},
		}

		// Act
		findings, err := a.Analyze(context.Background(), input)

		// Assert
		require.NoError(t, err)
		require.Len(t, findings, 1)
		require.Equal(t, KindMisspelling, findings[0].Kind)
		require.Contains(t, findings[0].Message, `"teh"`)
	})

	t.Run("empty page skips the stage", func(t *testing.T) {
		input := grammarInput("http://example.com/f", "")
		_, err := a.Analyze(context.Background(), input)
		require.ErrorIs(t, err, scanner.ErrStageSkipped)
	})
}
