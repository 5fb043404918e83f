// Package detect sniffs the SBOM dialect of a byte source from its
// prefix bytes and a file name hint.
package detect

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// Dialect is the detected SBOM encoding.
type Dialect string

const (
	CycloneDXJSON Dialect = "cyclonedx-json"
	CycloneDXXML  Dialect = "cyclonedx-xml"
	SPDXJSON      Dialect = "spdx-json"
	SPDXTagValue  Dialect = "spdx-tagvalue"
	SPDXRDFXML    Dialect = "spdx-rdfxml"
	Unknown       Dialect = "unknown"
)

// Confidence records which signal produced the detection.
type Confidence string

const (
	ConfidenceMagic     Confidence = "magic"
	ConfidenceExtension Confidence = "extension"
	ConfidenceAmbiguous Confidence = "ambiguous"
)

// sniffWindow is the amount of prefix inspected for magic-byte detection.
const sniffWindow = 4096

// Detect runs a four-step sniff policy (JSON field probe, XML root
// element, tag-value header line, then extension fallback). r must
// support re-reading from the start after Detect returns if the caller
// intends to parse the full document; callers typically wrap r in a
// bufio.Reader and pass that same reader on to the parser, since
// Detect only Peeks.
func Detect(r *bufio.Reader, nameHint string) (Dialect, Confidence, error) {
	peek, _ := r.Peek(sniffWindow)

	if d, ok := sniffJSON(peek); ok {
		return d, ConfidenceMagic, nil
	}
	if d, ok := sniffXML(peek); ok {
		return d, ConfidenceMagic, nil
	}
	if sniffTagValue(peek) {
		return SPDXTagValue, ConfidenceMagic, nil
	}

	if d, ok := fromExtension(nameHint); ok {
		return d, ConfidenceExtension, nil
	}

	return Unknown, ConfidenceAmbiguous, &canonical.ParseError{
		Kind:    canonical.UnsupportedFormat,
		Message: "could not detect SBOM dialect from content or file extension",
	}
}

func sniffJSON(peek []byte) (Dialect, bool) {
	trimmed := bytes.TrimLeft(peek, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}

	// We only need the first couple of top-level keys, not a full parse
	// of a possibly-truncated peek window; a streaming token scan avoids
	// requiring the peek to contain a structurally valid JSON document.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil { // consume '{'
		return "", false
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, _ := keyTok.(string)

		switch key {
		case "bomFormat":
			return CycloneDXJSON, true
		case "spdxVersion":
			return SPDXJSON, true
		}

		// Skip the value without materializing it.
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
	}
	return "", false
}

func sniffXML(peek []byte) (Dialect, bool) {
	trimmed := bytes.TrimLeft(peek, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return "", false
	}

	s := string(trimmed)
	// Skip processing instructions / comments / doctype to reach the root
	// element, without a full XML parse of a possibly-truncated window.
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "<?"):
			if i := strings.Index(s, "?>"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return "", false
		case strings.HasPrefix(s, "<!--"):
			if i := strings.Index(s, "-->"); i >= 0 {
				s = s[i+3:]
				continue
			}
			return "", false
		case strings.HasPrefix(s, "<!"):
			if i := strings.Index(s, ">"); i >= 0 {
				s = s[i+1:]
				continue
			}
			return "", false
		}
		break
	}

	if !strings.HasPrefix(s, "<") {
		return "", false
	}
	root := s[1:]
	// The element name ends at whitespace, '>' or '/'; the local name is
	// the part after a namespace prefix separator ':', if any.
	end := strings.IndexAny(root, " \t\r\n>/")
	if end >= 0 {
		root = root[:end]
	}
	local := root
	if i := strings.Index(root, ":"); i >= 0 {
		local = root[i+1:]
	}

	switch local {
	case "bom":
		return CycloneDXXML, true
	case "RDF":
		if strings.Contains(s[:min(len(s), sniffWindow)], "spdx") {
			return SPDXRDFXML, true
		}
	}
	return "", false
}

func sniffTagValue(peek []byte) bool {
	for _, line := range strings.Split(string(peek), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return strings.HasPrefix(trimmed, "SPDXVersion:")
	}
	return false
}

func fromExtension(nameHint string) (Dialect, bool) {
	ext := strings.ToLower(filepath.Ext(nameHint))
	base := strings.ToLower(filepath.Base(nameHint))
	switch {
	case strings.Contains(base, "cyclonedx") && ext == ".json":
		return CycloneDXJSON, true
	case strings.Contains(base, "cyclonedx") && ext == ".xml":
		return CycloneDXXML, true
	case strings.Contains(base, "spdx") && ext == ".json":
		return SPDXJSON, true
	case strings.Contains(base, "spdx") && ext == ".spdx":
		return SPDXTagValue, true
	case ext == ".json":
		return Unknown, false // extension alone is not enough for a bare .json
	case ext == ".xml":
		return Unknown, false
	}
	return Unknown, false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DetectBytes is a convenience wrapper for callers holding a full buffer
// already (e.g. tests, or documents small enough to have been read
// whole); it never affects the reader position contract large-document
// callers rely on from Detect.
func DetectBytes(data []byte, nameHint string) (Dialect, Confidence, error) {
	return Detect(bufio.NewReader(bytes.NewReader(data)), nameHint)
}
