// Package rdf parses Gutenberg RDF catalog documents into BookRecords.
//
// Each catalog entry is one RDF/XML document using the pgterms, dcterms and
// rdf namespaces. The parser pulls a fixed set of fields out of the tree so
// downstream code never probes raw XML.
package rdf

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

// issuedLayout is the date format of dcterms:issued values.
const issuedLayout = "2006-01-02"

// Parser implements gutenberg.Parser over RDF files on disk.
type Parser struct{}

// NewParser builds a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses one RDF document.
func (p *Parser) ParseFile(path string) (gutenberg.BookRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return gutenberg.BookRecord{}, fmt.Errorf("open rdf %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	record, err := Parse(f)
	if err != nil {
		return gutenberg.BookRecord{}, fmt.Errorf("parse rdf %s: %w", path, err)
	}
	return record, nil
}

// Parse extracts a BookRecord from one RDF document. A document with no
// extractable numeric book id fails with gutenberg.ErrNoBookID.
func Parse(r io.Reader) (gutenberg.BookRecord, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return gutenberg.BookRecord{}, fmt.Errorf("parse xml: %w", err)
	}

	ebook := xmlquery.FindOne(doc, "//pgterms:ebook")
	if ebook == nil {
		return gutenberg.BookRecord{}, gutenberg.ErrNoBookID
	}
	id, ok := parseTrailingID(ebook.SelectAttr("rdf:about"))
	if !ok {
		return gutenberg.BookRecord{}, gutenberg.ErrNoBookID
	}

	record := gutenberg.BookRecord{
		ID:         id,
		Title:      textOf(ebook, ".//dcterms:title"),
		Language:   textOf(ebook, ".//dcterms:language//rdf:value"),
		Issued:     issuedDate(ebook),
		Summary:    textOf(ebook, ".//pgterms:marc520"),
		Authors:    authors(ebook),
		Categories: bookshelves(ebook),
		TextURL:    plainTextURL(doc),
	}
	return record, nil
}

// textOf returns the trimmed text of the first match, or nil when the
// element is missing or empty. Empty never masquerades as a real value.
func textOf(node *xmlquery.Node, query string) *string {
	el := xmlquery.FindOne(node, query)
	if el == nil {
		return nil
	}
	text := strings.TrimSpace(el.InnerText())
	if text == "" {
		return nil
	}
	return &text
}

func issuedDate(ebook *xmlquery.Node) *time.Time {
	raw := textOf(ebook, ".//dcterms:issued")
	if raw == nil || *raw == "None" {
		return nil
	}
	t, err := time.Parse(issuedLayout, *raw)
	if err != nil {
		return nil
	}
	return &t
}

// authors collects dcterms:creator agents in document order, de-duplicated
// by agent id. Agents without a numeric id are dropped.
func authors(ebook *xmlquery.Node) []gutenberg.Author {
	creators := xmlquery.Find(ebook, ".//dcterms:creator")
	if len(creators) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(creators))
	var out []gutenberg.Author
	for _, creator := range creators {
		agent := xmlquery.FindOne(creator, ".//pgterms:agent")
		if agent == nil {
			continue
		}
		id, ok := parseTrailingID(agent.SelectAttr("rdf:about"))
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name := textOf(agent, ".//pgterms:name")
		if name == nil {
			continue
		}
		out = append(out, gutenberg.Author{
			ID:        id,
			Name:      *name,
			BirthYear: intOf(agent, ".//pgterms:birthdate"),
			DeathYear: intOf(agent, ".//pgterms:deathdate"),
		})
	}
	return out
}

// bookshelves returns the entry's bookshelf values in document order,
// de-duplicated, with synthetic "Browsing" shelves dropped.
func bookshelves(ebook *xmlquery.Node) []string {
	values := xmlquery.Find(ebook, ".//pgterms:bookshelf//rdf:value")
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		name := strings.TrimSpace(v.InnerText())
		if name == "" {
			continue
		}
		if prefix, _, found := strings.Cut(name, ":"); found && prefix == "Browsing" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// plainTextURL finds the first file entry whose format is text/plain.
func plainTextURL(doc *xmlquery.Node) string {
	for _, file := range xmlquery.Find(doc, "//pgterms:file") {
		format := xmlquery.FindOne(file, ".//dcterms:format//rdf:value")
		if format == nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(format.InnerText()), "text/plain") {
			return file.SelectAttr("rdf:about")
		}
	}
	return ""
}

// parseTrailingID extracts the numeric id from the last path segment of an
// rdf:about URI like "ebooks/12345" or "2009/agents/65".
func parseTrailingID(about string) (int64, bool) {
	if about == "" {
		return 0, false
	}
	segment := about
	if idx := strings.LastIndex(about, "/"); idx >= 0 {
		segment = about[idx+1:]
	}
	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func intOf(node *xmlquery.Node, query string) *int {
	raw := textOf(node, query)
	if raw == nil {
		return nil
	}
	n, err := strconv.Atoi(*raw)
	if err != nil {
		return nil
	}
	return &n
}
