package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pcameron/webscan/internal/scanner"
)

// MockRenderer is a mock implementation of the scanner.Renderer interface.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, rawURL string) (scanner.RenderResult, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(scanner.RenderResult), args.Error(1)
}

func (m *MockRenderer) Screenshot(ctx context.Context, rawURL, path string) error {
	args := m.Called(ctx, rawURL, path)
	return args.Error(0)
}

func (m *MockRenderer) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func htmlPage(url, body string) scanner.CrawledPage {
	return scanner.CrawledPage{
		URL:         url,
		FinalURL:    url,
		Status:      scanner.FetchSuccess,
		ContentType: "text/html; charset=utf-8",
		Title:       "Example",
		Body:        []byte(body),
	}
}

func TestHTML_Extract(t *testing.T) {
	t.Run("writes body to a stable filename", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		ext := NewHTML(dir)
		page := htmlPage("http://example.com/docs/intro", "<html><body>hi</body></html>")

		// Act
		ref, err := ext.Extract(context.Background(), page)

		// Assert
		require.NoError(t, err)
		require.Equal(t, "html", ref.Extractor)
		require.Equal(t, ".html", filepath.Ext(ref.Path))
		data, err := os.ReadFile(ref.Path)
		require.NoError(t, err)
		require.Equal(t, page.Body, data)

		// Same URL maps to the same artifact path.
		again, err := ext.Extract(context.Background(), page)
		require.NoError(t, err)
		require.Equal(t, ref.Path, again.Path)
	})

	t.Run("skips non-html content", func(t *testing.T) {
		ext := NewHTML(t.TempDir())
		page := htmlPage("http://example.com/data", `{"a":1}`)
		page.ContentType = "application/json"

		_, err := ext.Extract(context.Background(), page)
		require.ErrorIs(t, err, scanner.ErrStageSkipped)
	})
}

func TestText_Extract(t *testing.T) {
	// Arrange
	ext := NewText(t.TempDir())
	page := htmlPage("http://example.com/about",
		`<html><head><title>Example</title><style>b{color:red}</style></head>
		<body><script>alert(1)</script><h1>About  us</h1><p>We scan sites.</p></body></html>`)

	// Act
	ref, err := ext.Extract(context.Background(), page)

	// Assert
	require.NoError(t, err)
	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "URL: http://example.com/about")
	require.Contains(t, text, "Title: Example")
	require.Contains(t, text, "About us")
	require.Contains(t, text, "We scan sites.")
	require.NotContains(t, text, "alert(1)")
	require.NotContains(t, text, "color:red")
}

func TestScreenshot_Extract(t *testing.T) {
	t.Run("delegates capture to the renderer", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		renderer := new(MockRenderer)
		renderer.On("Screenshot", mock.Anything, "http://example.com/a", mock.Anything).Return(nil)
		ext := NewScreenshot(dir, renderer)
		page := htmlPage("http://example.com/a", "<html></html>")

		// Act
		ref, err := ext.Extract(context.Background(), page)

		// Assert
		require.NoError(t, err)
		require.Equal(t, "screenshot", ref.Extractor)
		require.Equal(t, ".png", filepath.Ext(ref.Path))
		renderer.AssertExpectations(t)
	})

	t.Run("nil renderer skips the stage", func(t *testing.T) {
		ext := NewScreenshot(t.TempDir(), nil)
		_, err := ext.Extract(context.Background(), htmlPage("http://example.com/a", "<html></html>"))
		require.ErrorIs(t, err, scanner.ErrStageSkipped)
	})
}

func TestSafeFilename(t *testing.T) {
	a := safeFilename("http://example.com/a/b?q=1")
	b := safeFilename("http://example.com/a/b?q=2")
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "/")
	require.NotContains(t, a, "?")
	require.Equal(t, a, safeFilename("http://example.com/a/b?q=1"))
}
