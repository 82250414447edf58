package restyutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"permgen/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memoryOutput) Write(id string, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = contents
}

func TestRecordTranscripts(t *testing.T) {
	telemetry.SetupForTesting(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>hello</p>"))
	}))
	defer server.Close()

	out := &memoryOutput{files: map[string]string{}}
	client := resty.New()
	RecordTranscripts(client, out)

	_, err := client.R().
		SetContext(context.Background()).
		SetHeader("X-Test", "1").
		Get(server.URL + "/reference")
	require.NoError(t, err)

	require.Len(t, out.files, 1)
	transcript := out.files["1"]
	require.Contains(t, transcript, "GET "+server.URL+"/reference")
	require.Contains(t, transcript, "X-Test: 1")
	require.Contains(t, transcript, "200 ")
	require.Contains(t, transcript, "Content-Type: text/html")
	require.Contains(t, transcript, "<p>hello</p>")
}

func TestRecordTranscriptsNilOutput(t *testing.T) {
	client := resty.New()
	RecordTranscripts(client, nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := t.TempDir() + "/transcripts"
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	out.Write("3", "body")
	require.FileExists(t, dir+"/3.txt")
}
