package cyclonedx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// progressChunk is the minimum gap between progress callbacks during a
// streaming parse. Progress is checked only after each top-level field,
// so the whole "components" array is consumed without a callback; one
// final callback is made at the end of the parse.
const progressChunk = 4 << 20 // 4 MiB

// countingReader tracks bytes read so the streaming decoder can report
// progress without the json.Decoder exposing a byte-offset API of its
// own.
type countingReader struct {
	r     io.Reader
	n     int64
	total int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// parseJSONStreaming walks the top-level JSON object token by token,
// materializing components one at a time from the "components" array so
// that total working memory never holds more than a handful of
// components plus the decoder's own small internal buffer, bounding
// peak memory well below the input size even for multi-gigabyte
// documents.
func parseJSONStreaming(ctx context.Context, r io.Reader, opts Options) (*canonical.NormalizedSbom, error) {
	var raw *bytes.Buffer
	if opts.RetainRawSource {
		// Opting into raw retention on a streaming parse forfeits the
		// bounded-memory guarantee for the duration of this call.
		raw = &bytes.Buffer{}
		r = io.TeeReader(r, raw)
	}

	cr := &countingReader{r: r, total: opts.SizeHint}
	dec := json.NewDecoder(cr)

	if _, err := dec.Token(); err != nil { // consume opening '{'
		return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid CycloneDX JSON", Err: err}
	}

	bom := &cdx.BOM{}
	bomRefToID := make(map[string]canonical.CanonicalId)
	doc := canonical.New(canonical.Metadata{})
	lastReport := int64(0)
	sawBomFormat := false

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		keyTok, err := dec.Token()
		if err != nil {
			return nil, &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid CycloneDX JSON", Err: err}
		}
		key, _ := keyTok.(string)

		switch key {
		case "bomFormat":
			var v string
			if err := dec.Decode(&v); err != nil {
				return nil, parseErr(err)
			}
			sawBomFormat = true
			_ = v
		case "specVersion":
			if err := dec.Decode(&bom.SpecVersion); err != nil {
				return nil, parseErr(err)
			}
		case "serialNumber":
			if err := dec.Decode(&bom.SerialNumber); err != nil {
				return nil, parseErr(err)
			}
		case "metadata":
			bom.Metadata = &cdx.Metadata{}
			if err := dec.Decode(bom.Metadata); err != nil {
				return nil, parseErr(err)
			}
		case "components":
			if err := streamComponents(ctx, dec, doc, bomRefToID); err != nil {
				return nil, err
			}
		case "dependencies":
			var deps []cdx.Dependency
			if err := dec.Decode(&deps); err != nil {
				return nil, parseErr(err)
			}
			bom.Dependencies = &deps
		case "vulnerabilities":
			var vulns []cdx.Vulnerability
			if err := dec.Decode(&vulns); err != nil {
				return nil, parseErr(err)
			}
			bom.Vulnerabilities = &vulns
		default:
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, parseErr(err)
			}
		}

		if opts.OnProgress != nil && cr.n-lastReport >= progressChunk {
			opts.OnProgress(cr.n, cr.total)
			lastReport = cr.n
		}
	}

	if !sawBomFormat {
		return nil, &canonical.ParseError{Kind: canonical.MissingRequiredField, Field: "bomFormat", Message: "CycloneDX document missing bomFormat"}
	}

	doc.Metadata = canonical.Metadata{
		SpecVersion:  bom.SpecVersion.String(),
		Tool:         toolName(bom),
		Name:         metadataComponentName(bom),
		SerialNumber: bom.SerialNumber,
	}
	if bom.Metadata != nil && bom.Metadata.Timestamp != "" {
		doc.Metadata.Created = parseTimestamp(bom.Metadata.Timestamp)
	}

	if err := convertVulnerabilities(doc, bom, bomRefToID); err != nil {
		return nil, err
	}
	if err := convertDependencies(doc, bom, bomRefToID); err != nil {
		return nil, err
	}

	if opts.OnProgress != nil {
		opts.OnProgress(cr.n, cr.total)
	}

	if raw != nil {
		doc.SetRawSource(raw.Bytes())
	}

	return doc, nil
}

// streamComponents decodes the "components" array element by element,
// recursing into nested component trees the same way convert's walk does
// for the non-streaming path, but never holding more than one component
// (plus its nested children, decoded the same way) in memory at once.
func streamComponents(ctx context.Context, dec *json.Decoder, doc *canonical.NormalizedSbom, bomRefToID map[string]canonical.CanonicalId) error {
	if _, err := dec.Token(); err != nil { // consume '['
		return parseErr(err)
	}
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var c cdx.Component
		if err := dec.Decode(&c); err != nil {
			return parseErr(err)
		}
		if err := addComponentTree(c, doc, bomRefToID); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return parseErr(err)
	}
	return nil
}

func addComponentTree(c cdx.Component, doc *canonical.NormalizedSbom, bomRefToID map[string]canonical.CanonicalId) error {
	comp, id, err := convertComponent(c)
	if err != nil {
		return err
	}
	if c.BOMRef != "" {
		bomRefToID[c.BOMRef] = id
	}
	if err := doc.AddComponent(comp); err != nil {
		return err
	}
	if c.Components == nil {
		return nil
	}
	for _, child := range *c.Components {
		if err := addComponentTree(child, doc, bomRefToID); err != nil {
			return err
		}
	}
	return nil
}

func parseErr(err error) error {
	return &canonical.ParseError{Kind: canonical.MalformedSyntax, Message: "invalid CycloneDX JSON", Err: err}
}
