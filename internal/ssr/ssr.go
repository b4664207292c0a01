// Package ssr expands the custom elements used in the page templates into plain HTML.
//
// Supported elements:
//
//	<risk-bar level="high|low|neutral" fill="62.5%">   risk factor progress bar
//	<probability-bar width="87.3%">                    per-class probability bar
//	<button-primary> or <button as="button-primary">   primary action button
package ssr

import (
	"io"
	"regexp"
	"slices"

	"github.com/PuerkitoBio/goquery"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const primaryButtonClass = "button-primary"

var (
	percentPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?%$`)
	riskLevels     = []string{"high", "low", "neutral"}
)

// ReplaceCustomElements expands the custom elements of a complete HTML document.
func ReplaceCustomElements(writer io.Writer, reader io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return errors.Wrap(err, "parse document")
	}
	expand(doc)
	if err = html.Render(writer, doc.Nodes[0]); err != nil {
		return errors.Wrap(err, "render html")
	}
	return nil
}

// ReplaceCustomElementsFragment expands the custom elements of an HTML fragment such as an htmx partial.
func ReplaceCustomElementsFragment(writer io.Writer, reader io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return errors.Wrap(err, "parse fragment")
	}
	expand(doc)
	body := doc.Find("body")
	if len(body.Nodes) == 0 {
		return nil
	}
	for c := body.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if err = html.Render(writer, c); err != nil {
			return errors.Wrap(err, "render html")
		}
	}
	return nil
}

func expand(doc *goquery.Document) {
	doc.Find("risk-bar").Each(func(_ int, s *goquery.Selection) {
		level := s.AttrOr("level", "neutral")
		if !slices.Contains(riskLevels, level) {
			level = "neutral"
		}
		outer := element(atom.Div, "risk-progress-bar", "")
		outer.AppendChild(element(atom.Div, "risk-progress-fill "+level, width(s.AttrOr("fill", ""))))
		s.ReplaceWithNodes(outer)
	})

	doc.Find("probability-bar").Each(func(_ int, s *goquery.Selection) {
		outer := element(atom.Div, "probability-bar-container", "")
		outer.AppendChild(element(atom.Div, "probability-bar", width(s.AttrOr("width", ""))))
		s.ReplaceWithNodes(outer)
	})

	doc.Find("button-primary").Each(func(_ int, s *goquery.Selection) {
		s.Nodes[0].Data = "button"
		s.Nodes[0].DataAtom = atom.Button
		s.AddClass(primaryButtonClass)
	})
	doc.Find(`[as="button-primary"]`).Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("as")
		s.AddClass(primaryButtonClass)
	})
}

func element(a atom.Atom, class string, style string) *html.Node {
	n := &html.Node{ //nolint:exhaustruct // tree links are set on insertion
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     []html.Attribute{{Namespace: "", Key: "class", Val: class}},
	}
	if style != "" {
		n.Attr = append(n.Attr, html.Attribute{Namespace: "", Key: "style", Val: style})
	}
	return n
}

// width only lets plain percentages through to the style attribute.
func width(percent string) string {
	if !percentPattern.MatchString(percent) {
		percent = "0%"
	}
	return "width: " + percent
}
