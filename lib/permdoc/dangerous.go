package permdoc

import (
	"context"
	"strings"

	"permgen/lib/htmlutil"
	"permgen/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DangerousStrategy reads the names of dangerous permissions from one shape of page.
type DangerousStrategy interface {
	Name() string
	// Match reports whether the page has the shape this strategy reads.
	Match(doc *goquery.Document) bool
	Extract(ctx context.Context, doc *goquery.Document, tel telemetry.API) ([]string, error)
}

// Strategies lists every known page shape, most recent first.
var Strategies = []DangerousStrategy{
	BlockStrategy{},
	TableStrategy{},
}

// DetectStrategy returns the first strategy that matches the page.
func DetectStrategy(doc *goquery.Document) (DangerousStrategy, error) {
	for _, s := range Strategies {
		if s.Match(doc) {
			return s, nil
		}
	}
	return nil, ErrUnknownPageShape
}

// Dangerous returns the names of the permissions with protection level
// dangerous, in document order.
func (e Extractor) Dangerous(ctx context.Context, doc *goquery.Document) ([]string, DangerousStrategy, error) {
	ctx, span := tracer.Start(ctx, "Dangerous")
	defer span.End()

	tel := e.tel("dangerous")

	strategy := e.Strategy
	if strategy == nil {
		var err error
		strategy, err = DetectStrategy(doc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to detect page shape")
			tel.ReportBroken("detect-strategy")
			return nil, nil, err
		}
	}
	span.SetAttributes(attribute.String("strategy", strategy.Name()))
	tel.ReportDebug("using strategy", strategy.Name())

	names, err := strategy.Extract(ctx, doc, tel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract dangerous permissions")
		return nil, strategy, err
	}

	span.SetAttributes(attribute.Int("names", len(names)))
	tel.ReportCount("permissions", int64(len(names)))
	if len(names) == 0 {
		tel.ReportWarning("permissions", "no dangerous permissions found", strategy.Name())
	}
	return names, strategy, nil
}

// TableStrategy reads the legacy permissions guide page, a table whose list
// items each link to one dangerous permission.
type TableStrategy struct{}

func (TableStrategy) Name() string {
	return "table"
}

func (TableStrategy) Match(doc *goquery.Document) bool {
	return doc.Find("table").First().Find("tr li").Length() > 0
}

func (TableStrategy) Extract(ctx context.Context, doc *goquery.Document, tel telemetry.API) ([]string, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrUnknownPageShape
	}

	var names []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		row.Find("li").Each(func(_ int, item *goquery.Selection) {
			name := strings.TrimSpace(htmlutil.FirstText(item.Find("code").First().Find("a").First()))
			if name == "" {
				tel.ReportWarning("table-strategy.item", "list item without a permission link", htmlutil.Collapse(item.Text()))
				return
			}
			names = append(names, name)
		})
	})
	return names, nil
}

// BlockStrategy reads the reference page, where every permission has a
// detail block whose only attribute is data-version-added.
type BlockStrategy struct{}

func (BlockStrategy) Name() string {
	return "block"
}

// DetailBlocks selects the detail block of every permission.
func DetailBlocks(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div[data-version-added]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		attrs := s.Nodes[0].Attr
		return len(attrs) == 1 && attrs[0].Key == "data-version-added"
	})
}

func (BlockStrategy) Match(doc *goquery.Document) bool {
	return DetailBlocks(doc).Length() > 0
}

func (BlockStrategy) Extract(ctx context.Context, doc *goquery.Document, tel telemetry.API) ([]string, error) {
	var names []string
	DetailBlocks(doc).Each(func(_ int, block *goquery.Selection) {
		name := strings.TrimSpace(htmlutil.FirstText(block.Find("h3").First()))
		if name == "" {
			tel.ReportWarning("block-strategy.block", "detail block without a heading")
			return
		}
		block.Find("p").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if strings.Contains(text, "Protection level:") && strings.Contains(text, "dangerous") {
				names = append(names, name)
			}
		})
	})
	return names, nil
}
