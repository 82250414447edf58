package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FirstText returns the text of the first child of the first node in sel,
// which is what a reference page puts in a <code><a>NAME</a></code> or an <h3>.
// an element child contributes all of its text.
func FirstText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	first := sel.Nodes[0].FirstChild
	if first == nil {
		return ""
	}
	return GetText(first)
}

// also matches &nbsp;
var whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)

// Collapse turns every run of whitespace into a single space and trims both ends.
func Collapse(s string) string {
	return strings.TrimFunc(whitespace.ReplaceAllString(s, " "), unicode.IsSpace)
}

// IsOrContains reports whether the node is an element named tag or has one
// among its descendants.
func IsOrContains(node *html.Node, tag string) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	if node.Data == tag {
		return true
	}
	return goquery.NewDocumentFromNode(node).Find(tag).Length() > 0
}

var converter = md.NewConverter("", true, &md.Options{
	HeadingStyle:   "atx",
	CodeBlockStyle: "fenced",
})

func init() {
	converter.Remove("script", "style")
}

// Markdown renders a selection (usually one reference detail block) as markdown.
func Markdown(sel *goquery.Selection) string {
	return strings.TrimSpace(converter.Convert(sel))
}
