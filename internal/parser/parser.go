// Package parser dispatches a detected dialect to the matching
// sub-parser and exposes the shared streaming contract.
package parser

import (
	"bufio"
	"context"
	"io"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/detect"
	"github.com/sbomdiff/sbomdiff/internal/parser/cyclonedx"
	"github.com/sbomdiff/sbomdiff/internal/parser/spdx"
)

// StreamingThreshold is the document size beyond which a parser must
// switch to its incremental reader.
const StreamingThreshold = 512 << 20 // 512 MiB

// Source describes the byte source a parser reads from.
type Source struct {
	Reader io.Reader
	// SizeHint is the total size in bytes if known, -1 otherwise. Used to
	// decide whether the streaming path is required and to report
	// progress against a total.
	SizeHint int64
	// NameHint is the file name (or URL path), used by format detection
	// when content sniffing is ambiguous.
	NameHint string
	// OnProgress, if set, is invoked by the streaming CycloneDX JSON
	// parser after a top-level field once at least 4 MiB more input has
	// been consumed, and once at the end. Calls within a single field,
	// such as the "components" array, are not made. Other parsers do not
	// call it.
	OnProgress func(bytesRead, total int64)
}

// Options configures parsing behavior independent of dialect.
type Options struct {
	// RetainRawSource, when true, keeps the original bytes on the
	// resulting NormalizedSbom for a downstream viewer.
	RetainRawSource bool
}

// Dialect re-exports detect.Dialect so callers of this package need not
// import internal/detect directly.
type Dialect = detect.Dialect

// Detect sniffs src's dialect without consuming it past the peek window
// the detector uses, so the same reader can be handed to Parse.
func Detect(src Source) (Dialect, detect.Confidence, *bufio.Reader, error) {
	br := bufio.NewReader(src.Reader)
	d, conf, err := detect.Detect(br, src.NameHint)
	return d, conf, br, err
}

// Parse detects src's dialect (unless already known) and routes to the
// matching dialect parser, returning a NormalizedSbom or a structured
// ParseError.
func Parse(ctx context.Context, src Source, opts Options) (*canonical.NormalizedSbom, error) {
	dialect, _, br, err := Detect(src)
	if err != nil {
		return nil, err
	}
	return ParseDialect(ctx, dialect, br, src, opts)
}

// ParseDialect parses r (already positioned at the start of the
// document) as the given dialect. Exposed separately from Parse so
// callers who already know the dialect (e.g. from a prior Detect call, or
// a format explicitly specified out-of-band) can skip re-sniffing.
func ParseDialect(ctx context.Context, dialect Dialect, r io.Reader, src Source, opts Options) (*canonical.NormalizedSbom, error) {
	streaming := src.SizeHint < 0 || src.SizeHint >= StreamingThreshold

	switch dialect {
	case detect.CycloneDXJSON:
		return cyclonedx.ParseJSON(ctx, r, cyclonedx.Options{
			Streaming:       streaming,
			SizeHint:        src.SizeHint,
			OnProgress:      src.OnProgress,
			RetainRawSource: opts.RetainRawSource,
		})
	case detect.CycloneDXXML:
		return cyclonedx.ParseXML(ctx, r, cyclonedx.Options{
			SizeHint:        src.SizeHint,
			OnProgress:      src.OnProgress,
			RetainRawSource: opts.RetainRawSource,
		})
	case detect.SPDXJSON:
		return spdx.ParseJSON(ctx, r, spdx.Options{RetainRawSource: opts.RetainRawSource})
	case detect.SPDXTagValue:
		return spdx.ParseTagValue(ctx, r, spdx.Options{RetainRawSource: opts.RetainRawSource})
	case detect.SPDXRDFXML:
		return spdx.ParseRDF(ctx, r, spdx.Options{RetainRawSource: opts.RetainRawSource})
	default:
		return nil, &canonical.ParseError{Kind: canonical.UnsupportedFormat, Message: "unrecognized SBOM dialect"}
	}
}
