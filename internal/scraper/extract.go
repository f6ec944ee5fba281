package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

// TextNodes returns the text nodes under sel in document order, each
// trimmed, with whitespace-only tokens dropped. This is the flat sequence
// both extraction modes operate on.
func TextNodes(sel *goquery.Selection) []string {
	var texts []string
	for _, node := range sel.Nodes {
		collectText(node, &texts)
	}
	return texts
}

func collectText(node *html.Node, texts *[]string) {
	if node.Type == html.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			*texts = append(*texts, text)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, texts)
	}
}

// OwnTextNodes is like TextNodes but only looks at sel's immediate child
// text nodes, ignoring anything nested in child elements. Positional cells
// carry their value as direct text while nested tables hold unrelated
// content.
func OwnTextNodes(sel *goquery.Selection) []string {
	var texts []string
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.TextNode {
				continue
			}
			if text := strings.TrimSpace(child.Data); text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

// JoinedText concatenates the cleaned text nodes under sel.
func JoinedText(sel *goquery.Selection) string {
	return strings.Join(TextNodes(sel), "")
}

// IsURL reports whether raw is an absolute http(s) URL. Relative links in
// document cells are treated as broken rather than propagated.
func IsURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// DocumentURL returns the document link carried by a fragment, or "" when
// there is none usable. A record carries at most one document: extra links
// are reported and only the first kept. An invalid first link is reported
// and dropped, never emitted broken.
func DocumentURL(spider string, sel *goquery.Selection, rep Reporter) string {
	var hrefs []string
	sel.Find("[href]").Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	})
	if len(hrefs) == 0 {
		return ""
	}
	if len(hrefs) > 1 {
		rep.Warn(errors.Unsupported(spider, fmt.Sprintf("multiple document URLs %v, keeping only the first", hrefs)))
	}
	if !IsURL(hrefs[0]) {
		rep.Warn(errors.Value(spider, fmt.Sprintf("invalid document URL %q", hrefs[0]), nil))
		return ""
	}
	return hrefs[0]
}

// PaymentField identifies one detail field of a payment record.
type PaymentField int

const (
	FieldNumber PaymentField = iota
	FieldDocument
	FieldDate
	FieldProcessNumber
	FieldSummary
	FieldGroup
	FieldAction
	FieldFunction
	FieldSubfunction
	FieldTypeOfProcess
	FieldResource
)

// paymentLabels maps the portal's detail labels to field identifiers. The
// set is closed: a label outside it means the page shape changed.
var paymentLabels = map[string]PaymentField{
	"N°:":                     FieldNumber,
	"CPF/CNPJ:":               FieldDocument,
	"Data:":                   FieldDate,
	"N° do processo:":         FieldProcessNumber,
	"Bem / Serviço Prestado:": FieldSummary,
	"Natureza:":               FieldGroup,
	"Ação:":                   FieldAction,
	"Função:":                 FieldFunction,
	"Subfunção:":              FieldSubfunction,
	"Processo Licitatório:":   FieldTypeOfProcess,
	"Fonte de Recurso:":       FieldResource,
}

// PopLabelPairs consumes a strict (label, value, label, value, ...) sequence
// and maps each label to its field. Pair order between labels is
// insignificant. An odd-length sequence or an unknown label is a shape error
// for the whole record: emitting a mis-assigned mapping is worse than
// skipping it.
func PopLabelPairs(spider string, texts []string) (map[PaymentField]string, error) {
	if len(texts)%2 != 0 {
		return nil, errors.Shape(spider, fmt.Sprintf("detail sequence has odd length %d, cannot pair labels with values", len(texts)))
	}

	fields := make(map[PaymentField]string, len(texts)/2)
	for i := 0; i < len(texts); i += 2 {
		field, known := paymentLabels[texts[i]]
		if !known {
			return nil, errors.Shape(spider, fmt.Sprintf("unknown detail label %q", texts[i]))
		}
		fields[field] = texts[i+1]
	}
	return fields, nil
}
