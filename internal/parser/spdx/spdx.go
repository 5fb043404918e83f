// Package spdx converts SPDX 2.2/2.3 JSON, tag-value and RDF/XML
// documents into canonical.NormalizedSbom, using
// github.com/spdx/tools-golang for decoding.
package spdx

import (
	"bytes"
	"context"
	"io"

	spdxconvert "github.com/spdx/tools-golang/convert"
	spdxjson "github.com/spdx/tools-golang/json"
	spdxrdf "github.com/spdx/tools-golang/rdf"
	"github.com/spdx/tools-golang/spdx/v2/common"
	v2_3 "github.com/spdx/tools-golang/spdx/v2/v2_3"
	spdxtv "github.com/spdx/tools-golang/tagvalue"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/purl"
)

const dialectName = "spdx"

const (
	spdxNone        = "NONE"
	spdxNoAssertion = "NOASSERTION"
)

// Options configures an SPDX parse.
type Options struct {
	RetainRawSource bool
}

// ParseJSON parses an SPDX 2.2/2.3 JSON document.
func ParseJSON(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	var raw *bytes.Buffer
	if opts.RetainRawSource {
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}
	anyDoc, err := spdxjson.Read(r)
	if err != nil {
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid SPDX JSON", Err: err}
	}
	return convert(ctx, anyDoc, raw)
}

// ParseTagValue parses an SPDX 2.2/2.3 tag-value document.
//
// Multi-line PackageComment values that end with a literal "</text>" on a
// continuation line are handled entirely by tools-golang's tagvalue
// reader's own <text>...</text> block convention:
// a continuation line is part of the same comment iff the block has not
// yet seen its closing </text> tag.
func ParseTagValue(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	var raw *bytes.Buffer
	if opts.RetainRawSource {
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}
	anyDoc, err := spdxtv.Read(r)
	if err != nil {
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid SPDX tag-value document", Err: err}
	}
	return convert(ctx, anyDoc, raw)
}

// ParseRDF parses an SPDX 2.2/2.3 RDF/XML document.
func ParseRDF(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	var raw *bytes.Buffer
	if opts.RetainRawSource {
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}
	anyDoc, err := spdxrdf.Read(r)
	if err != nil {
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid SPDX RDF/XML document", Err: err}
	}
	return convert(ctx, anyDoc, raw)
}

func convert(ctx context.Context, anyDoc common.AnyDocument, raw *bytes.Buffer) (*canonical.NormalizedSbom, error) {
	d := new(v2_3.Document)
	if err := spdxconvert.Document(anyDoc, d); err != nil {
		return nil, &canonical.ParseError{Kind: canonical.UnsupportedSchemaVersion, Message: "SPDX document could not be upgraded to the 2.3 model", Err: err}
	}

	meta := canonical.Metadata{
		SpecVersion: d.SPDXVersion,
		Name:        d.DocumentName,
	}
	if d.CreationInfo != nil {
		meta.Created = parseTimestamp(d.CreationInfo.Created)
		if len(d.CreationInfo.Creators) > 0 {
			meta.Tool = d.CreationInfo.Creators[0].Creator
		}
	}

	doc := canonical.New(meta)
	idByElementID := make(map[common.ElementID]canonical.CanonicalId)

	for _, pkg := range d.Packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		comp, id, err := convertPackage(pkg)
		if err != nil {
			return nil, err
		}
		idByElementID[pkg.PackageSPDXIdentifier] = id
		if err := doc.AddComponent(comp); err != nil {
			return nil, err
		}
	}

	for _, rel := range d.Relationships {
		if err := convertRelationship(doc, rel, idByElementID); err != nil {
			return nil, err
		}
	}

	if raw != nil {
		doc.SetRawSource(raw.Bytes())
	}

	return doc, nil
}

func convertPackage(pkg *v2_3.Package) (canonical.Component, canonical.CanonicalId, error) {
	var id canonical.CanonicalId
	var purlCanonical string

	purlLocator := findPurl(pkg)
	if purlLocator != "" {
		p, err := purl.Parse(purlLocator)
		if err == nil {
			id = p.CanonicalID()
			purlCanonical = p.Canonical
		}
	}
	if id.Name == "" {
		id = canonical.CanonicalId{
			Ecosystem: canonical.EcosystemGeneric,
			Name:      lower(pkg.PackageName),
			Version:   canonical.Version{Raw: pkg.PackageVersion},
		}
	}

	comp := canonical.Component{
		ID:          id,
		DisplayName: pkg.PackageName,
		Purl:        purlCanonical,
		Properties:  make(map[string]string),
	}

	if lic := meaningfulLicense(pkg.PackageLicenseConcluded); lic != "" {
		comp.Licenses = append(comp.Licenses, canonical.NewLicense(lic))
	} else if lic := meaningfulLicense(pkg.PackageLicenseDeclared); lic != "" {
		comp.Licenses = append(comp.Licenses, canonical.NewLicense(lic))
	}

	if len(pkg.PackageChecksums) > 0 {
		comp.Hashes = make(map[string]string, len(pkg.PackageChecksums))
		for _, cks := range pkg.PackageChecksums {
			comp.Hashes[lower(string(cks.Algorithm))] = cks.Value
		}
	}

	if pkg.PackageSupplier != nil {
		comp.Supplier = pkg.PackageSupplier.Supplier
	}
	comp.Description = pkg.PackageDescription

	if pkg.PackageComment != "" {
		comp.SetProperty(dialectName, "packageComment", pkg.PackageComment)
	}

	return comp, id, nil
}

func findPurl(pkg *v2_3.Package) string {
	for _, ref := range pkg.PackageExternalReferences {
		if ref.RefType == "purl" {
			return ref.Locator
		}
	}
	return ""
}

func meaningfulLicense(s string) string {
	if s == "" || s == spdxNone || s == spdxNoAssertion {
		return ""
	}
	return s
}

func convertRelationship(doc *canonical.NormalizedSbom, rel *v2_3.Relationship, idByElementID map[common.ElementID]canonical.CanonicalId) error {
	// Only DEPENDS_ON (and its inverse DEPENDENCY_OF) describe
	// dependency graph edges; DESCRIBES, CONTAINS and other
	// relationship types are document-structural, not dependency
	// edges, and are intentionally not turned into DependencyEdges.
	var from, to common.ElementID
	switch rel.Relationship {
	case "DEPENDS_ON":
		from, to = rel.RefA.ElementRefID, rel.RefB.ElementRefID
	case "DEPENDENCY_OF":
		from, to = rel.RefB.ElementRefID, rel.RefA.ElementRefID
	default:
		return nil
	}

	fromID, ok := idByElementID[from]
	if !ok {
		return &canonical.ParseError{Kind: canonical.InvalidReference, Field: string(from), Message: "relationship references unknown SPDX element"}
	}
	toID, ok := idByElementID[to]
	if !ok {
		return &canonical.ParseError{Kind: canonical.InvalidReference, Field: string(to), Message: "relationship references unknown SPDX element"}
	}

	return doc.AddEdge(canonical.DependencyEdge{From: fromID, To: toID, Scope: canonical.ScopeRuntime})
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
