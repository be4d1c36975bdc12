package matching

import (
	"strings"

	"github.com/beevik/etree"
)

// matchXPath parses body as XML and checks that each XPath yields the
// expected trimmed text. Attribute paths ("/a/b/@id") yield the attribute
// value. Bodies that are not XML never match.
func matchXPath(conditions map[string]string, body []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return false
	}
	if doc.Root() == nil {
		return false
	}

	for xpath, expected := range conditions {
		actual, found := extractXPath(doc, xpath)
		if !found || actual != expected {
			return false
		}
	}
	return true
}

func extractXPath(doc *etree.Document, xpath string) (string, bool) {
	if elemPath, attrName, ok := splitAttributePath(xpath); ok {
		elem := doc.FindElement(elemPath)
		if elem == nil {
			return "", false
		}
		attr := elem.SelectAttr(attrName)
		if attr == nil {
			return "", false
		}
		return attr.Value, true
	}

	element := doc.FindElement(xpath)
	if element == nil {
		return "", false
	}
	return strings.TrimSpace(element.Text()), true
}

// splitAttributePath splits "/a/b/@id" into "/a/b" and "id".
func splitAttributePath(xpath string) (elemPath, attrName string, ok bool) {
	i := strings.LastIndex(xpath, "/@")
	if i < 0 {
		return "", "", false
	}
	elemPath, attrName = xpath[:i], xpath[i+2:]
	if elemPath == "" || attrName == "" || strings.ContainsAny(attrName, "/[]") {
		return "", "", false
	}
	return elemPath, attrName, true
}

// validateXPath checks the element part of an XPath compiles.
func validateXPath(xpath string) error {
	if elemPath, _, ok := splitAttributePath(xpath); ok {
		xpath = elemPath
	}
	_, err := etree.CompilePath(xpath)
	return err
}
