package permdoc

import (
	"context"
	"strings"

	"permgen/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

const deprecationNotice = "This constant was deprecated"

// ConstantsTable finds the table listing every Manifest.permission constant.
func ConstantsTable(doc *goquery.Document) (*goquery.Selection, error) {
	table := doc.Find("table#constants.responsive.constants").First()
	if table.Length() == 0 {
		return nil, ErrConstantsTableMissing
	}
	return table, nil
}

// Permissions returns every permission of the constants table in document order.
func (e Extractor) Permissions(ctx context.Context, doc *goquery.Document) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "Permissions")
	defer span.End()

	tel := e.tel("listing")

	table, err := ConstantsTable(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find constants table")
		tel.ReportBroken("constants-table")
		return nil, err
	}

	var entries []Entry
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		entry, ok := parseRow(row)
		if !ok {
			return
		}
		if entry.Deprecated && !e.IncludeDeprecated {
			tel.ReportDebug("skipping deprecated permission", entry.Name)
			return
		}
		entries = append(entries, entry)
	})

	span.SetAttributes(attribute.Int("entries", len(entries)))
	tel.ReportCount("permissions", int64(len(entries)))
	if len(entries) == 0 {
		tel.ReportWarning("permissions", "constants table had no usable rows")
	}
	return entries, nil
}

func parseRow(row *goquery.Selection) (Entry, bool) {
	attrs := row.Nodes[0].Attr
	if len(attrs) == 0 {
		return Entry{}, false
	}
	// rows outside of the selected api level are marked "absent"
	if strings.Contains(attrs[0].Val, "absent") {
		return Entry{}, false
	}

	info := row.Find(`td[width="100%"]`).First()
	if info.Length() == 0 {
		return Entry{}, false
	}

	name := strings.TrimSpace(htmlutil.FirstText(info.Find("code").First().Find("a").First()))

	var pieces []string
	deprecated := false
	info.Find("p").First().Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Nodes[0]
		piece := ""
		switch node.Type {
		case html.TextNode:
			piece = htmlutil.Collapse(node.Data)
		case html.ElementNode:
			if htmlutil.IsOrContains(node, "em") && strings.Contains(htmlutil.Collapse(child.Text()), deprecationNotice) {
				deprecated = true
			}
			piece = elementPiece(child)
		}
		if piece != "" {
			pieces = append(pieces, piece)
		}
	})

	if name == "" || len(pieces) == 0 {
		return Entry{}, false
	}

	desc := strings.TrimSpace(strings.Join(pieces, " "))
	return Entry{
		Name:        name,
		Description: strings.ReplaceAll(desc, `"`, `\"`),
		Deprecated:  deprecated,
	}, true
}

// inline code is always a link to another constant or class, the link text
// is what is kept.
func elementPiece(child *goquery.Selection) string {
	if !htmlutil.IsOrContains(child.Nodes[0], "code") {
		return htmlutil.Collapse(child.Text())
	}
	link := child.Find("a").First()
	if goquery.NodeName(child) == "a" {
		link = child
	}
	if link.Length() > 0 {
		return htmlutil.Collapse(htmlutil.FirstText(link))
	}
	return htmlutil.Collapse(child.Text())
}
