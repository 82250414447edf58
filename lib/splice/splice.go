// Package splice formats the generated String[] blocks of Permissions.java and
// replaces the old blocks with them.
package splice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"permgen/lib/permdoc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("permgen.lib.splice")

const (
	ListingPrefix   = "listing"
	DangerousPrefix = "dangerous"

	// closes every generated block, the one character after it (the newline)
	// is consumed as well
	closeToken = "  };"
)

var (
	ErrMarkerNotFound   = errors.New("declaration marker not found")
	ErrMarkerDuplicated = errors.New("declaration marker found more than once")
	ErrCloseNotFound    = errors.New("closing token not found after declaration marker")
)

// Marker is the declaration a block starts with.
func Marker(prefix string) string {
	return fmt.Sprintf("static final String[] %s = {", prefix)
}

// Block is the text of one generated String[] declaration.
type Block struct {
	Prefix string
	Text   string
}

func format(prefix string, lines []string) Block {
	var out strings.Builder
	out.WriteString(Marker(prefix))
	for i, line := range lines {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString("\n    ")
		out.WriteString(line)
	}
	out.WriteString("\n")
	out.WriteString(closeToken)
	out.WriteString("\n")
	return Block{Prefix: prefix, Text: out.String()}
}

// Listing formats the name/description pairs, descriptions must already be escaped.
func Listing(entries []permdoc.Entry) Block {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf(`"%s", "%s"`, e.Name, e.Description)
	}
	return format(ListingPrefix, lines)
}

func Dangerous(names []string) Block {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf(`"%s"`, name)
	}
	return format(DangerousPrefix, lines)
}

// Validate checks that every prefix's marker appears exactly once in source.
func Validate(source string, prefixes ...string) error {
	var errs []error
	for _, prefix := range prefixes {
		switch strings.Count(source, Marker(prefix)) {
		case 0:
			errs = append(errs, fmt.Errorf("%s: %w", prefix, ErrMarkerNotFound))
		case 1:
		default:
			errs = append(errs, fmt.Errorf("%s: %w", prefix, ErrMarkerDuplicated))
		}
	}
	return errors.Join(errs...)
}

// Splice replaces everything from the block's declaration marker through the
// first closing token after it (and the character following that) with the block.
func Splice(ctx context.Context, source string, block Block) (string, error) {
	_, span := tracer.Start(ctx, "Splice")
	defer span.End()
	span.SetAttributes(attribute.String("prefix", block.Prefix))

	start := strings.Index(source, Marker(block.Prefix))
	if start < 0 {
		err := fmt.Errorf("%s: %w", block.Prefix, ErrMarkerNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "marker not found")
		return "", err
	}

	offset := strings.Index(source[start:], closeToken)
	if offset < 0 {
		err := fmt.Errorf("%s: %w", block.Prefix, ErrCloseNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "closing token not found")
		return "", err
	}

	end := min(start+offset+len(closeToken)+1, len(source))
	return source[:start] + block.Text + source[end:], nil
}
