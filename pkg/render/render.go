// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render writes agent documents and filtered elements in the output
// formats of the mt command.
package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"

	"github.com/yeetrun/mt/pkg/filter"
)

type Format string

const (
	Xml         Format = "Xml"
	Json        Format = "Json"
	PrettyJson  Format = "PrettyJson"
	Csv         Format = "Csv"
	CsvNoHeader Format = "CsvNoHeader"
	Yaml        Format = "Yaml"
)

// Formats lists every output format.
var Formats = []Format{Xml, Json, PrettyJson, Csv, CsvNoHeader, Yaml}

// Printer writes documents to W.
type Printer struct {
	W          io.Writer
	Format     Format
	HeaderOnly bool
}

// Document writes a whole document, or only its Header when HeaderOnly is
// set.
func (p *Printer) Document(doc *etree.Document) error {
	el := doc.Root()
	if el == nil {
		return nil
	}
	if p.HeaderOnly {
		el = el.FindElement("//Header")
		if el == nil {
			return nil
		}
	}
	switch p.Format {
	case Xml:
		return p.xml(el)
	case Json, PrettyJson:
		return p.json(el)
	case Yaml:
		return p.yaml([]*etree.Element{el})
	}
	return fmt.Errorf("cannot output document in format %s", p.Format)
}

// Elements writes a filtered element list. Nothing is written for an empty
// list.
func (p *Printer) Elements(els []*etree.Element) error {
	if len(els) == 0 {
		return nil
	}
	switch p.Format {
	case Csv, CsvNoHeader:
		return p.csv(els)
	case Yaml:
		return p.yaml(els)
	case Xml, Json, PrettyJson:
		for _, el := range els {
			var err error
			if p.Format == Xml {
				err = p.xml(el)
			} else {
				err = p.json(el)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot output elements in format %s", p.Format)
}

func (p *Printer) xml(el *etree.Element) error {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.W, strings.TrimRight(out, "\n"))
	return err
}

func (p *Printer) json(el *etree.Element) error {
	b, err := toJSON(el, p.Format == PrettyJson)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.W, "%s\n", b)
	return err
}

func (p *Printer) yaml(els []*etree.Element) error {
	enc := yaml.NewEncoder(p.W)
	enc.SetIndent(2)
	for _, el := range els {
		if err := enc.Encode(toYAML(wrap(el))); err != nil {
			return err
		}
	}
	return enc.Close()
}

// csv writes one record per element: its name, its attribute values and its
// text. Csv adds a header row named after the first element's attributes.
func (p *Printer) csv(els []*etree.Element) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if p.Format == Csv {
		header := []string{"Type"}
		for _, a := range els[0].Attr {
			header = append(header, a.Key)
		}
		header = append(header, "Value")
		if err := w.Write(header); err != nil {
			return err
		}
	}
	for _, el := range els {
		rec := []string{el.Tag}
		for _, a := range el.Attr {
			rec = append(rec, a.Value)
		}
		rec = append(rec, filter.Value(el))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := p.W.Write(buf.Bytes())
	return err
}
