// Package permsync regenerates the listing and dangerous blocks of
// Permissions.java from the Android reference.
package permsync

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"permgen/lib/permdoc"
	"permgen/lib/refpage"
	"permgen/lib/splice"
	"permgen/lib/telemetry"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("permgen.services.permsync")

const DefaultTarget = "src/processing/mode/android/Permissions.java"

type Options struct {
	// the Permissions.java to rewrite
	Target string
	// url or saved html file of the Manifest.permission reference
	Reference string
	// url or saved html file the dangerous set is read from, empty means Reference
	Dangerous         string
	IncludeDeprecated bool
	// compute everything but leave Target untouched
	DryRun bool
	// when nil, the dangerous page shape is detected
	Strategy permdoc.DangerousStrategy
}

type Result struct {
	Permissions int
	Dangerous   int
	Strategy    string
	// whether the target content differs from what was generated
	Changed bool
	// whether the target was rewritten
	Written bool
	// line diff of the old and new content, only computed for dry runs
	Diff string
}

type Service struct {
	source refpage.Source
	tel    telemetry.API
}

// NewService creates a service, tel may be nil.
func NewService(source refpage.Source, tel telemetry.API) Service {
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	return Service{source: source, tel: tel}
}

func stageError(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}

// Run reads the target, regenerates both blocks and writes the target back.
// nothing is written unless both blocks were spliced.
func (s Service) Run(ctx context.Context, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	result, err := s.run(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("permissions", result.Permissions),
		attribute.Int("dangerous", result.Dangerous),
		attribute.Bool("changed", result.Changed),
	)
	return result, nil
}

func (s Service) run(ctx context.Context, opts Options) (Result, error) {
	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}
	reference := opts.Reference
	if reference == "" {
		reference = refpage.ReferenceURL
	}

	slog.InfoContext(ctx, "reading target", "path", target)
	contents, err := os.ReadFile(target)
	if err != nil {
		return Result{}, stageError("read target", err)
	}
	original := string(contents)
	err = splice.Validate(original, splice.ListingPrefix, splice.DangerousPrefix)
	if err != nil {
		return Result{}, stageError("read target", err)
	}

	extractor := permdoc.Extractor{
		IncludeDeprecated: opts.IncludeDeprecated,
		Strategy:          opts.Strategy,
		Tel:               s.tel,
	}

	doc, err := s.source.Document(ctx, reference)
	if err != nil {
		return Result{}, stageError("fetch reference", err)
	}

	slog.InfoContext(ctx, "parsing all permissions")
	entries, err := extractor.Permissions(ctx, doc)
	if err != nil {
		return Result{}, stageError("extract listing", err)
	}
	source, err := splice.Splice(ctx, original, splice.Listing(entries))
	if err != nil {
		return Result{}, stageError("splice listing", err)
	}

	dangerousDoc := doc
	if opts.Dangerous != "" && !refpage.SameLocation(opts.Dangerous, reference) {
		dangerousDoc, err = s.source.Document(ctx, opts.Dangerous)
		if err != nil {
			return Result{}, stageError("fetch dangerous", err)
		}
	}

	slog.InfoContext(ctx, "parsing dangerous permissions")
	names, strategy, err := extractor.Dangerous(ctx, dangerousDoc)
	if err != nil {
		return Result{}, stageError("extract dangerous", err)
	}
	source, err = splice.Splice(ctx, source, splice.Dangerous(names))
	if err != nil {
		return Result{}, stageError("splice dangerous", err)
	}

	result := Result{
		Permissions: len(entries),
		Dangerous:   len(names),
		Strategy:    strategy.Name(),
		Changed:     source != original,
	}

	if opts.DryRun {
		result.Diff = LineDiff(original, source)
		slog.InfoContext(ctx, "dry run, target left untouched", "path", target, "changed", result.Changed)
		return result, nil
	}
	if !result.Changed {
		slog.InfoContext(ctx, "target already up to date", "path", target)
		return result, nil
	}

	err = writeFile(target, source)
	if err != nil {
		return Result{}, stageError("write target", err)
	}
	result.Written = true
	slog.InfoContext(
		ctx, "wrote target",
		"path", target,
		"permissions", result.Permissions,
		"dangerous", result.Dangerous,
	)
	return result, nil
}

// writes to a temporary file next to path and renames it over path,
// keeping the original file mode.
func writeFile(path, contents string) error {
	mode := os.FileMode(0644)
	info, err := os.Stat(path)
	if err == nil {
		mode = info.Mode().Perm()
	}
	return renameio.WriteFile(path, []byte(contents), mode)
}

