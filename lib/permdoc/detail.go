package permdoc

import (
	"errors"
	"fmt"
	"strings"

	"permgen/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

var ErrPermissionNotFound = errors.New("permission not found")

// NotFoundError is returned by Detail, it carries the closest known name.
type NotFoundError struct {
	Name       string
	Suggestion string
}

func (e NotFoundError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("%s: %s", ErrPermissionNotFound, e.Name)
	}
	return fmt.Sprintf("%s: %s (did you mean %s?)", ErrPermissionNotFound, e.Name, e.Suggestion)
}

func (e NotFoundError) Unwrap() error {
	return ErrPermissionNotFound
}

// Names returns every permission name the page documents, detail blocks
// first, then constants table rows not already seen.
func Names(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	DetailBlocks(doc).Each(func(_ int, block *goquery.Selection) {
		add(htmlutil.FirstText(block.Find("h3").First()))
	})
	table, err := ConstantsTable(doc)
	if err == nil {
		table.Find(`td[width="100%"]`).Each(func(_ int, info *goquery.Selection) {
			add(htmlutil.FirstText(info.Find("code").First().Find("a").First()))
		})
	}
	return names
}

// Detail finds the section of the page documenting one permission: its
// detail block, or its constants table row on pages without detail blocks.
func Detail(doc *goquery.Document, name string) (*goquery.Selection, error) {
	block := DetailBlocks(doc).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(htmlutil.FirstText(s.Find("h3").First())) == name
	})
	if block.Length() > 0 {
		return block.First(), nil
	}

	table, err := ConstantsTable(doc)
	if err == nil {
		row := table.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
			info := row.Find(`td[width="100%"]`).First()
			return strings.TrimSpace(htmlutil.FirstText(info.Find("code").First().Find("a").First())) == name
		})
		if row.Length() > 0 {
			return row.First(), nil
		}
	}

	return nil, NotFoundError{Name: name, Suggestion: Suggest(name, Names(doc))}
}

// Suggest returns the candidate most similar to name, or "" when none is
// close enough to be worth mentioning.
func Suggest(name string, candidates []string) string {
	const threshold = 0.8

	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := matchr.JaroWinkler(strings.ToUpper(name), strings.ToUpper(c), false)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < threshold {
		return ""
	}
	return best
}
