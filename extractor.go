package lotterysim

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var elementName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// Selector locates a node by element name and a substring of its class attribute,
// e.g. the dd element whose class contains "c-next-draw-card__prize-value".
type Selector struct {
	Element       string `json:"element" mapstructure:"element"`
	ClassContains string `json:"class_contains" mapstructure:"class_contains"`
}

// String returns the CSS form of the selector
func (s Selector) String() string {
	return fmt.Sprintf(`%s[class*="%s"]`, s.Element, s.ClassContains)
}

// Validate checks that the selector can be compiled
func (s Selector) Validate() error {
	_, err := s.Compile()
	return err
}

// Compile turns the selector into a goquery matcher
func (s Selector) Compile() (goquery.Matcher, error) {
	if !elementName.MatchString(s.Element) {
		return nil, ErrInvalidSelector.WithDetailsf("element %q is not a valid tag name", s.Element)
	}
	if s.ClassContains == "" || strings.ContainsAny(s.ClassContains, "\"\\\n") {
		return nil, ErrInvalidSelector.WithDetailsf("class token %q is empty or contains reserved characters", s.ClassContains)
	}

	m, err := cascadia.Compile(s.String())
	if err != nil {
		return nil, ErrInvalidSelector.WithCause(err).WithDetails(s.String())
	}
	return m, nil
}

// Extract returns the text content of the first node matching sel.
//
// The markup is parsed leniently; unclosed tags and a missing doctype still
// produce a tree. found is false, with a nil error, when nothing matches.
func Extract(markup []byte, sel Selector) (text string, found bool, err error) {
	m, err := sel.Compile()
	if err != nil {
		return "", false, err
	}
	doc, err := parseMarkup(markup)
	if err != nil {
		return "", false, err
	}
	return extractWith(doc, m)
}

func parseMarkup(markup []byte) (*goquery.Document, error) {
	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, ErrFetchValidation.WithCause(err).WithDetails("markup could not be parsed")
	}
	return goquery.NewDocumentFromNode(root), nil
}

func extractWith(doc *goquery.Document, m goquery.Matcher) (string, bool, error) {
	match := doc.FindMatcher(m).First()
	if match.Length() == 0 {
		return "", false, nil
	}
	return match.Text(), true, nil
}
