package refpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"permgen/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<table id="constants" class="responsive constants">
  <tr class="api"><td width="100%"><code><a>CAMERA</a></code><p>Camera.</p></td></tr>
</table>
</body></html>`

func TestIsURL(t *testing.T) {
	require.True(t, IsURL(ReferenceURL))
	require.True(t, IsURL("http://localhost:8080/x"))
	require.False(t, IsURL("Manifest.permission.html"))
	require.False(t, IsURL("/tmp/https-page.html"))
}

func TestDocumentHttp(t *testing.T) {
	telemetry.SetupForTesting(t)

	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{UserAgent: "permgen-test"})
	require.NoError(t, err)

	doc, err := client.Document(context.Background(), server.URL+"/reference/android/Manifest.permission.html")
	require.NoError(t, err)
	require.Equal(t, "CAMERA", doc.Find("table#constants code a").Text())
	require.Equal(t, "permgen-test", userAgent)
}

func TestDocumentHttpStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)

	_, err = client.Document(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Contains(t, err.Error(), "404")
}

func TestDocumentHttpTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(ClientOptions{Timeout: time.Millisecond * 50})
	require.NoError(t, err)

	_, err = client.Document(context.Background(), server.URL)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestDocumentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Manifest.permission.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0644))

	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)

	doc, err := client.Document(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "Camera.", doc.Find("p").Text())

	_, err = client.Document(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	require.True(t, os.IsNotExist(err))
}

func TestTranscripts(t *testing.T) {
	telemetry.SetupForTesting(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "transcripts")
	client, err := NewClient(ClientOptions{TranscriptDir: dir})
	require.NoError(t, err)

	_, err = client.Document(context.Background(), server.URL)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "1.txt"))
}
