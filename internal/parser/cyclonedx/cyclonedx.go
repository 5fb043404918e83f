// Package cyclonedx converts CycloneDX 1.4-1.6 JSON and XML documents into
// canonical.NormalizedSbom, using github.com/CycloneDX/cyclonedx-go for
// decoding.
package cyclonedx

import (
	"bytes"
	"context"
	"fmt"
	"io"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/purl"
)

const dialectName = "cyclonedx"

// Options configures a CycloneDX parse.
type Options struct {
	Streaming       bool
	SizeHint        int64
	OnProgress      func(bytesRead, total int64)
	RetainRawSource bool
}

// ParseXML parses a CycloneDX XML document. The library loads the whole
// document for XML regardless of size, since encoding/xml has no
// equivalent to a streaming array cursor as convenient as JSON's
// json.Decoder.Token; XML inputs above the streaming threshold are
// expected to be rare for SBOMs in practice, and only one parser path
// per dialect needs to provide the streaming guarantee.
func ParseXML(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	var raw *bytes.Buffer
	if opts.RetainRawSource {
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}

	bom := new(cdx.BOM)
	decoder := cdx.NewBOMDecoder(r, cdx.BOMFileFormatXML)
	if err := decoder.Decode(bom); err != nil {
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid CycloneDX XML", Err: err}
	}
	return convert(ctx, bom, opts, raw)
}

// ParseJSON parses a CycloneDX JSON document, using the streaming
// component cursor when opts.Streaming is set.
func ParseJSON(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	if opts.Streaming {
		return parseJSONStreaming(ctx, r, opts)
	}

	var raw *bytes.Buffer
	if opts.RetainRawSource {
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}

	bom := new(cdx.BOM)
	decoder := cdx.NewBOMDecoder(r, cdx.BOMFileFormatJSON)
	if err := decoder.Decode(bom); err != nil {
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid CycloneDX JSON", Err: err}
	}
	return convert(ctx, bom, opts, raw)
}

func convert(ctx context.Context, bom *cdx.BOM, opts Options, raw *bytes.Buffer) (*canonical.NormalizedSbom, error) {
	meta := canonical.Metadata{
		SpecVersion:  bom.SpecVersion.String(),
		Tool:         toolName(bom),
		Name:         metadataComponentName(bom),
		SerialNumber: bom.SerialNumber,
	}
	if bom.Metadata != nil && bom.Metadata.Timestamp != "" {
		meta.Created = parseTimestamp(bom.Metadata.Timestamp)
	}

	doc := canonical.New(meta)

	bomRefToID := make(map[string]canonical.CanonicalId)

	var walk func(comps *[]cdx.Component) error
	walk = func(comps *[]cdx.Component) error {
		if comps == nil {
			return nil
		}
		for i := range *comps {
			c := (*comps)[i]
			if err := ctx.Err(); err != nil {
				return err
			}
			comp, id, derr := convertComponent(c)
			if derr != nil {
				return derr
			}
			if c.BOMRef != "" {
				bomRefToID[c.BOMRef] = id
			}
			if err := doc.AddComponent(comp); err != nil {
				return err
			}
			if err := walk(c.Components); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(bom.Components); err != nil {
		return nil, err
	}

	if err := convertVulnerabilities(doc, bom, bomRefToID); err != nil {
		return nil, err
	}

	if err := convertDependencies(doc, bom, bomRefToID); err != nil {
		return nil, err
	}

	if raw != nil {
		doc.SetRawSource(raw.Bytes())
	}

	return doc, nil
}

func convertComponent(c cdx.Component) (canonical.Component, canonical.CanonicalId, error) {
	var id canonical.CanonicalId
	var purlCanonical string

	if c.PackageURL != "" {
		p, err := purl.Parse(c.PackageURL)
		if err == nil {
			id = p.CanonicalID()
			purlCanonical = p.Canonical
		}
	}
	if id.Name == "" {
		// No usable PURL: fall back to a generic identity keyed on
		// name/version under the generic ecosystem, so the matcher can
		// still align it against other generic components at T3 and
		// against any component at T4.
		id = canonical.CanonicalId{
			Ecosystem: canonical.EcosystemGeneric,
			Namespace: lower(c.Group),
			Name:      lower(c.Name),
			Version:   canonical.Version{Raw: c.Version},
		}
	}

	comp := canonical.Component{
		ID:          id,
		DisplayName: c.Name,
		Purl:        purlCanonical,
		CPE:         c.CPE,
		Author:      c.Author,
		Description: c.Description,
		Properties:  make(map[string]string),
	}

	if c.Licenses != nil {
		for _, lc := range *c.Licenses {
			switch {
			case lc.Expression != "":
				comp.Licenses = append(comp.Licenses, canonical.NewLicense(lc.Expression))
			case lc.License != nil && lc.License.ID != "":
				comp.Licenses = append(comp.Licenses, canonical.NewLicense(lc.License.ID))
			case lc.License != nil && lc.License.Name != "":
				comp.Licenses = append(comp.Licenses, canonical.NewLicense(lc.License.Name))
			}
		}
	}

	if c.Hashes != nil {
		comp.Hashes = make(map[string]string, len(*c.Hashes))
		for _, h := range *c.Hashes {
			comp.Hashes[lower(string(h.Algorithm))] = h.Value
		}
	}

	if c.Supplier != nil {
		comp.Supplier = c.Supplier.Name
	}

	if c.Properties != nil {
		for _, p := range *c.Properties {
			comp.SetProperty(dialectName, p.Name, p.Value)
		}
	}

	return comp, id, nil
}

func convertDependencies(doc *canonical.NormalizedSbom, bom *cdx.BOM, bomRefToID map[string]canonical.CanonicalId) error {
	if bom.Dependencies == nil {
		return nil
	}
	for _, dep := range *bom.Dependencies {
		fromID, ok := bomRefToID[dep.Ref]
		if !ok {
			return &canonical.ParseError{Kind: canonical.InvalidReference, Field: dep.Ref, Message: "dependency entry references unknown bom-ref"}
		}
		if dep.Dependencies == nil {
			continue
		}
		for _, toRef := range *dep.Dependencies {
			toID, ok := bomRefToID[toRef]
			if !ok {
				return &canonical.ParseError{Kind: canonical.InvalidReference, Field: toRef, Message: "dependsOn references unknown bom-ref"}
			}
			if err := doc.AddEdge(canonical.DependencyEdge{From: fromID, To: toID, Scope: canonical.ScopeRuntime}); err != nil {
				return err
			}
		}
	}
	return nil
}

func convertVulnerabilities(doc *canonical.NormalizedSbom, bom *cdx.BOM, bomRefToID map[string]canonical.CanonicalId) error {
	if bom.Vulnerabilities == nil {
		return nil
	}
	for _, v := range *bom.Vulnerabilities {
		vuln := canonical.Vulnerability{
			ID:     v.ID,
			Source: canonical.VulnSourceInBand,
		}
		if v.Ratings != nil && len(*v.Ratings) > 0 {
			r := (*v.Ratings)[0]
			vuln.Severity = severityFromCDX(r.Severity)
			if r.Score != nil {
				vuln.CVSSScore = *r.Score
			}
			vuln.CVSSVector = r.Vector
		}
		if v.Source != nil {
			vuln.AdvisoryURL = v.Source.URL
		}

		if v.Affects == nil {
			continue
		}
		for _, aff := range *v.Affects {
			id, ok := bomRefToID[aff.Ref]
			if !ok {
				continue // dangling vulnerability reference is tolerated, not a document defect
			}
			comp, ok := doc.Component(id)
			if !ok {
				continue
			}
			comp.Vulns = append(comp.Vulns, vuln)
		}
	}
	return nil
}

func severityFromCDX(s cdx.Severity) canonical.Severity {
	switch s {
	case cdx.SeverityNone:
		return canonical.SeverityNone
	case cdx.SeverityLow:
		return canonical.SeverityLow
	case cdx.SeverityMedium:
		return canonical.SeverityMedium
	case cdx.SeverityHigh:
		return canonical.SeverityHigh
	case cdx.SeverityCritical:
		return canonical.SeverityCritical
	default:
		return canonical.SeverityUnknown
	}
}

func toolName(bom *cdx.BOM) string {
	if bom.Metadata == nil || bom.Metadata.Tools == nil {
		return ""
	}
	if bom.Metadata.Tools.Components != nil && len(*bom.Metadata.Tools.Components) > 0 {
		t := (*bom.Metadata.Tools.Components)[0]
		return fmt.Sprintf("%s@%s", t.Name, t.Version)
	}
	return ""
}

func metadataComponentName(bom *cdx.BOM) string {
	if bom.Metadata == nil || bom.Metadata.Component == nil {
		return ""
	}
	return bom.Metadata.Component.Name
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
