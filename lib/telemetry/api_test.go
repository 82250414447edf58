package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := &Recorder{}
	// the outer scope is applied first, the innermost namespace ends up leftmost
	api := NewScopedAPI("listing", NewScopedAPI("permdoc", recorder))

	api.ReportWarning("row", "READ_CONTACTS")
	api.ReportCount("entries", 3)
	api.ReportBroken("table")

	require.Equal(t, []Report{
		{Kind: "warning", ID: "permdoc: listing: row", Params: []any{"READ_CONTACTS"}},
	}, recorder.Find("warning"))
	require.Equal(t, []Report{
		{Kind: "count", ID: "permdoc: listing: entries", Count: 3},
	}, recorder.Find("count"))
	require.Len(t, recorder.Find("broken"), 1)
	require.Empty(t, recorder.Find("debug"))
}

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "permgen", Config{})
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))
}
