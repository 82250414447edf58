// Package permdoc extracts permission data from the Android Manifest.permission
// reference page (and the older permissions guide page).
package permdoc

import (
	"errors"

	"permgen/lib/telemetry"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("permgen.lib.permdoc")

var (
	ErrConstantsTableMissing = errors.New("constants table not found")
	ErrUnknownPageShape      = errors.New("no dangerous permission list or permission detail blocks found")
)

// Entry is one permission constant of the reference page.
type Entry struct {
	Name string
	// whitespace collapsed, `"` escaped as `\"`
	Description string
	Deprecated  bool
}

type Extractor struct {
	// keep entries whose description carries a deprecation notice
	IncludeDeprecated bool
	// when nil, the dangerous set is read with the first strategy that matches the page
	Strategy DangerousStrategy
	// when nil, reports go to slog
	Tel telemetry.API
}

func (e Extractor) tel(component string) telemetry.API {
	var inner telemetry.API = telemetry.SlogAPI{}
	if e.Tel != nil {
		inner = e.Tel
	}
	return telemetry.NewScopedAPI(component, inner)
}
