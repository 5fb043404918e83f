package spdx_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/parser/spdx"
)

const sampleJSON = `{
  "spdxVersion": "SPDX-2.3",
  "SPDXID": "SPDXRef-DOCUMENT",
  "name": "test-doc",
  "dataLicense": "CC0-1.0",
  "documentNamespace": "https://example.com/test",
  "creationInfo": {
    "created": "2024-01-01T00:00:00Z",
    "creators": ["Tool: sbomdiff-test"]
  },
  "packages": [
    {
      "SPDXID": "SPDXRef-Package-lodash",
      "name": "lodash",
      "versionInfo": "4.17.20",
      "downloadLocation": "NOASSERTION",
      "licenseConcluded": "MIT",
      "licenseDeclared": "MIT",
      "externalRefs": [
        {"referenceCategory": "PACKAGE-MANAGER", "referenceType": "purl", "referenceLocator": "pkg:npm/lodash@4.17.20"}
      ]
    },
    {
      "SPDXID": "SPDXRef-Package-bodyparser",
      "name": "body-parser",
      "versionInfo": "1.20.2",
      "downloadLocation": "NOASSERTION",
      "licenseConcluded": "NOASSERTION",
      "licenseDeclared": "NOASSERTION",
      "externalRefs": [
        {"referenceCategory": "PACKAGE-MANAGER", "referenceType": "purl", "referenceLocator": "pkg:npm/body-parser@1.20.2"}
      ]
    }
  ],
  "relationships": [
    {"spdxElementId": "SPDXRef-Package-bodyparser", "relatedSpdxElement": "SPDXRef-Package-lodash", "relationshipType": "DEPENDS_ON"}
  ]
}`

func TestParseJSON_BuildsComponentsAndEdges(t *testing.T) {
	t.Parallel()

	doc, err := spdx.ParseJSON(context.Background(), strings.NewReader(sampleJSON), spdx.Options{})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if doc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", doc.Len())
	}
	if len(doc.Edges()) != 1 {
		t.Fatalf("Edges() len = %d, want 1", len(doc.Edges()))
	}
}

func TestParseJSON_NoAssertionLicenseTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	doc, err := spdx.ParseJSON(context.Background(), strings.NewReader(sampleJSON), spdx.Options{})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	for _, c := range doc.Components() {
		if c.DisplayName == "body-parser" && c.HasLicense() {
			t.Error("body-parser has NOASSERTION licenses on both fields, want HasLicense()=false")
		}
	}
}

const sampleTagValue = `SPDXVersion: SPDX-2.3
DataLicense: CC0-1.0
SPDXID: SPDXRef-DOCUMENT
DocumentName: test-doc
DocumentNamespace: https://example.com/test
Creator: Tool: sbomdiff-test
Created: 2024-01-01T00:00:00Z

PackageName: lodash
SPDXID: SPDXRef-Package-lodash
PackageVersion: 4.17.20
PackageDownloadLocation: NOASSERTION
PackageLicenseConcluded: MIT
PackageLicenseDeclared: MIT
ExternalRef: PACKAGE-MANAGER purl pkg:npm/lodash@4.17.20
`

func TestParseTagValue_BuildsComponents(t *testing.T) {
	t.Parallel()

	doc, err := spdx.ParseTagValue(context.Background(), strings.NewReader(sampleTagValue), spdx.Options{})
	if err != nil {
		t.Fatalf("ParseTagValue() error = %v", err)
	}
	if doc.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", doc.Len())
	}
}

const sampleJSON22 = `{
  "spdxVersion": "SPDX-2.2",
  "SPDXID": "SPDXRef-DOCUMENT",
  "name": "test-doc-22",
  "dataLicense": "CC0-1.0",
  "documentNamespace": "https://example.com/test-22",
  "creationInfo": {
    "created": "2024-01-01T00:00:00Z",
    "creators": ["Tool: sbomdiff-test"]
  },
  "packages": [
    {
      "SPDXID": "SPDXRef-Package-lodash",
      "name": "lodash",
      "versionInfo": "4.17.20",
      "downloadLocation": "NOASSERTION",
      "licenseConcluded": "MIT",
      "licenseDeclared": "MIT",
      "externalRefs": [
        {"referenceCategory": "PACKAGE-MANAGER", "referenceType": "purl", "referenceLocator": "pkg:npm/lodash@4.17.20"}
      ]
    }
  ]
}`

// SPDX 2.2 documents resolve to tools-golang's v2_2.Document model, which
// must be upgraded to v2_3 before the rest of the conversion runs.
func TestParseJSON_SPDX22IsUpgraded(t *testing.T) {
	t.Parallel()

	doc, err := spdx.ParseJSON(context.Background(), strings.NewReader(sampleJSON22), spdx.Options{})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want SPDX 2.2 to be accepted", err)
	}
	if doc.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", doc.Len())
	}
}

func TestParseJSON_RetainRawSource(t *testing.T) {
	t.Parallel()

	doc, err := spdx.ParseJSON(context.Background(), strings.NewReader(sampleJSON), spdx.Options{RetainRawSource: true})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if string(doc.RawSource()) != sampleJSON {
		t.Error("RawSource() did not retain the original document bytes")
	}
}
