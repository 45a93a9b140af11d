package kml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type placemarkFixture struct {
	Name     string
	Address  string
	Category string
	Distance string
	Begin    string
	End      string
	Coords   []string
	NoSpan   bool
	NoTrack  bool
}

func (p placemarkFixture) xml() string {
	var b strings.Builder
	b.WriteString("<Placemark>\n")
	fmt.Fprintf(&b, "<name>%s</name>\n", p.Name)
	fmt.Fprintf(&b, "<address>%s</address>\n", p.Address)
	b.WriteString("<ExtendedData>\n")
	b.WriteString(`<Data name="Email"><value>me@example.com</value></Data>` + "\n")
	fmt.Fprintf(&b, `<Data name="Category"><value>%s</value></Data>`+"\n", p.Category)
	fmt.Fprintf(&b, `<Data name="Distance"><value>%s</value></Data>`+"\n", p.Distance)
	b.WriteString("</ExtendedData>\n")
	b.WriteString("<description>from somewhere to somewhere</description>\n")
	b.WriteString("<Point><coordinates>2.35,48.85,0</coordinates></Point>\n")
	if !p.NoSpan {
		fmt.Fprintf(&b, "<TimeSpan><begin>%s</begin><end>%s</end></TimeSpan>\n", p.Begin, p.End)
	}
	if !p.NoTrack {
		b.WriteString("<gx:Track><altitudeMode>clampToGround</altitudeMode>")
		for _, c := range p.Coords {
			fmt.Fprintf(&b, "<gx:coord>%s</gx:coord>", c)
		}
		b.WriteString("</gx:Track>\n")
	}
	b.WriteString("</Placemark>\n")
	return b.String()
}

func kmlDoc(marks ...placemarkFixture) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">` + "\n")
	b.WriteString("<Document>\n<name>Location history</name>\n")
	for _, m := range marks {
		b.WriteString(m.xml())
	}
	b.WriteString("</Document>\n</kml>\n")
	return b.String()
}

func walk() placemarkFixture {
	return placemarkFixture{
		Name:     "Walking",
		Category: "walking",
		Distance: "1234.9",
		Begin:    "2017-06-05T14:30:00.000Z",
		End:      "2017-06-05T15:00:00.000Z",
		Coords:   []string{"2.35 48.85 0", "2.36 48.86 0"},
	}
}

func visit() placemarkFixture {
	return placemarkFixture{
		Name:     "Office",
		Address:  "1 Rue de Rivoli, Paris",
		Distance: "0",
		Begin:    "2017-06-05T07:00:00.000Z",
		End:      "2017-06-05T12:15:30.500Z",
		Coords:   []string{"2.35 48.85 0"},
	}
}

func writeKML(t *testing.T, dir, name string, marks ...placemarkFixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(kmlDoc(marks...)), 0o644))
	return path
}
