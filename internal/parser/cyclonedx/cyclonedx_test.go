package cyclonedx_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/parser/cyclonedx"
)

const sampleBOM = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
  "version": 1,
  "metadata": {
    "timestamp": "2024-01-01T00:00:00Z"
  },
  "components": [
    {
      "bom-ref": "lodash@4.17.20",
      "type": "library",
      "name": "lodash",
      "version": "4.17.20",
      "purl": "pkg:npm/lodash@4.17.20",
      "licenses": [{"license": {"id": "MIT"}}]
    },
    {
      "bom-ref": "body-parser@1.20.2",
      "type": "library",
      "name": "body-parser",
      "version": "1.20.2",
      "purl": "pkg:npm/body-parser@1.20.2"
    }
  ],
  "dependencies": [
    {"ref": "lodash@4.17.20", "dependsOn": []},
    {"ref": "body-parser@1.20.2", "dependsOn": ["lodash@4.17.20"]}
  ]
}`

func TestParseJSON_NonStreaming(t *testing.T) {
	t.Parallel()

	doc, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(sampleBOM), cyclonedx.Options{})
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

func TestParseJSON_Streaming_MatchesNonStreaming(t *testing.T) {
	t.Parallel()

	var progressCalls int
	streamed, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(sampleBOM), cyclonedx.Options{
		Streaming: true,
		SizeHint:  int64(len(sampleBOM)),
		OnProgress: func(read, total int64) {
			progressCalls++
		},
	})
	if err != nil {
		t.Fatalf("ParseJSON(streaming) error = %v", err)
	}

	nonStreamed, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(sampleBOM), cyclonedx.Options{})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}

	if streamed.Len() != nonStreamed.Len() {
		t.Errorf("streamed.Len() = %d, non-streamed = %d", streamed.Len(), nonStreamed.Len())
	}
	if streamed.ContentHash() != nonStreamed.ContentHash() {
		t.Errorf("streaming and non-streaming parses produced different content hashes")
	}
	if progressCalls == 0 {
		t.Error("OnProgress was never called during a streaming parse")
	}
}

func TestParseJSON_RetainRawSource(t *testing.T) {
	t.Parallel()

	doc, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(sampleBOM), cyclonedx.Options{RetainRawSource: true})
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if string(doc.RawSource()) != sampleBOM {
		t.Error("RawSource() did not retain the original document bytes")
	}
}

func TestParseJSON_Streaming_RetainRawSource(t *testing.T) {
	t.Parallel()

	doc, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(sampleBOM), cyclonedx.Options{
		Streaming:       true,
		SizeHint:        int64(len(sampleBOM)),
		RetainRawSource: true,
	})
	if err != nil {
		t.Fatalf("ParseJSON(streaming) error = %v", err)
	}
	if string(doc.RawSource()) != sampleBOM {
		t.Error("RawSource() did not retain the original document bytes under streaming")
	}
}

func TestParseJSON_MissingBomFormatIsMissingRequiredField(t *testing.T) {
	t.Parallel()

	bad := `{"specVersion":"1.5","components":[]}`
	_, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(bad), cyclonedx.Options{Streaming: true, SizeHint: int64(len(bad))})
	if err == nil {
		t.Fatal("ParseJSON() expected error for missing bomFormat, got nil")
	}
	var pe *canonical.ParseError
	if !errors.As(err, &pe) || pe.Kind != canonical.MissingRequiredField {
		t.Errorf("ParseJSON() error = %v, want ParseError of kind MissingRequiredField", err)
	}
}

func TestParseJSON_DanglingDependencyIsInvalidReference(t *testing.T) {
	t.Parallel()

	bad := `{
      "bomFormat": "CycloneDX",
      "specVersion": "1.5",
      "components": [{"bom-ref":"a","type":"library","name":"a","version":"1.0.0"}],
      "dependencies": [{"ref":"a","dependsOn":["missing"]}]
    }`
	_, err := cyclonedx.ParseJSON(context.Background(), strings.NewReader(bad), cyclonedx.Options{})
	if err == nil {
		t.Fatal("ParseJSON() expected error for dangling dependsOn reference, got nil")
	}
	var pe *canonical.ParseError
	if !errors.As(err, &pe) || pe.Kind != canonical.InvalidReference {
		t.Errorf("ParseJSON() error = %v, want ParseError of kind InvalidReference", err)
	}
}
