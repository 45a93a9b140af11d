package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field names the normalizer depends on.
const (
	FieldTimeSpan = "TimeSpan"
	FieldTrack    = "Track"
	FieldAddress  = "Address"
	FieldName     = "Name"
	FieldCategory = "Category"
	FieldDistance = "Distance"

	// geometryMarker children are skipped; the track carries the geometry.
	geometryMarker = "Point"
	placemarkTag   = "Placemark"
)

// FieldShape is how one child of a placemark is flattened.
type FieldShape int

const (
	// ShapeScalar is a field with a single child: its text is stored
	// under the title-cased field name.
	ShapeScalar FieldShape = iota
	// ShapeNamedGroup holds several sub-elements carrying a name
	// attribute; each one becomes its own top-level field.
	ShapeNamedGroup
	// ShapeSequence is anything else: the text of every child is kept,
	// in order, under the field's own name.
	ShapeSequence
)

func (s FieldShape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeNamedGroup:
		return "named-group"
	case ShapeSequence:
		return "sequence"
	default:
		return fmt.Sprintf("FieldShape(%d)", int(s))
	}
}

// Placemark is one raw record flattened into field name -> value.
type Placemark struct {
	// Index is the record's position within its source document.
	Index  int
	Fields map[string]string
	Lists  map[string][]string
}

// Text returns a scalar field, or "" if absent.
func (p Placemark) Text(name string) string {
	return p.Fields[name]
}

// Sequence returns a sequence field. A sequence that held a single child
// was classified as a scalar, so that case is folded back in here.
func (p Placemark) Sequence(name string) ([]string, bool) {
	if l, ok := p.Lists[name]; ok {
		return l, true
	}
	if s, ok := p.Fields[name]; ok {
		return []string{s}, true
	}
	return nil, false
}

// node is a generic XML element.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// childCount counts element children plus a non-blank text child.
func (n node) childCount() int {
	c := len(n.Nodes)
	if strings.TrimSpace(n.Text) != "" {
		c++
	}
	return c
}

func (n node) innerText() string {
	if len(n.Nodes) == 0 {
		return strings.TrimSpace(n.Text)
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(n.Text))
	for _, c := range n.Nodes {
		b.WriteString(c.innerText())
	}
	return b.String()
}

func (n node) namedChildren() []node {
	var out []node
	for _, c := range n.Nodes {
		if _, ok := c.attr("name"); ok {
			out = append(out, c)
		}
	}
	return out
}

// classify decides the shape of one placemark child. Empty elements are
// treated as empty scalars.
func classify(n node) FieldShape {
	if n.childCount() <= 1 {
		return ShapeScalar
	}
	if len(n.namedChildren()) > 1 {
		return ShapeNamedGroup
	}
	return ShapeSequence
}

// titleCase mimics the capitalisation used for field and category names:
// first letter of each word upper, the rest lower.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// Decode streams every Placemark element out of r, wherever it sits in
// the document. Malformed records are reported in recErrs and left out of
// marks; err is reserved for input that cannot be read as XML at all.
func Decode(r io.Reader) (marks []Placemark, recErrs []error, err error) {
	dec := xml.NewDecoder(r)
	index := 0
	for {
		tok, terr := dec.Token()
		if errors.Is(terr, io.EOF) {
			return marks, recErrs, nil
		}
		if terr != nil {
			return marks, recErrs, fmt.Errorf("decode kml: %w", terr)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != placemarkTag {
			continue
		}

		var n node
		if err := dec.DecodeElement(&n, &start); err != nil {
			return marks, recErrs, fmt.Errorf("decode placemark %d: %w", index, err)
		}

		pm, perr := parseRecord(n, index)
		index++
		if perr != nil {
			recErrs = append(recErrs, perr)
			continue
		}
		marks = append(marks, pm)
	}
}

// ParseFile opens path and decodes it.
func ParseFile(path string) ([]Placemark, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	return Decode(f)
}

// parseRecord flattens one Placemark element and checks that the fields
// the normalizer needs are present.
func parseRecord(n node, index int) (Placemark, error) {
	pm := Placemark{
		Index:  index,
		Fields: make(map[string]string),
		Lists:  make(map[string][]string),
	}

	for _, child := range n.Nodes {
		name := child.XMLName.Local
		if name == geometryMarker {
			continue
		}

		switch classify(child) {
		case ShapeScalar:
			pm.Fields[titleCase(name)] = child.innerText()
		case ShapeNamedGroup:
			for _, d := range child.namedChildren() {
				key, _ := d.attr("name")
				pm.Fields[key] = d.innerText()
			}
		case ShapeSequence:
			values := make([]string, 0, len(child.Nodes))
			for _, c := range child.Nodes {
				values = append(values, c.innerText())
			}
			pm.Lists[name] = values
		}
	}

	if span, ok := pm.Lists[FieldTimeSpan]; !ok || len(span) != 2 {
		return Placemark{}, &MalformedRecordError{Index: index, Field: FieldTimeSpan, Reason: "missing begin/end pair"}
	}
	if _, ok := pm.Sequence(FieldTrack); !ok {
		return Placemark{}, &MalformedRecordError{Index: index, Field: FieldTrack, Reason: "missing geometry"}
	}

	return pm, nil
}
