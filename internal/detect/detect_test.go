package detect_test

import (
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/detect"
)

func TestDetect_CycloneDXJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{"bomFormat":"CycloneDX","specVersion":"1.5","components":[]}`)
	d, conf, err := detect.DetectBytes(data, "bom.json")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.CycloneDXJSON {
		t.Errorf("Dialect = %v, want CycloneDXJSON", d)
	}
	if conf != detect.ConfidenceMagic {
		t.Errorf("Confidence = %v, want magic", conf)
	}
}

func TestDetect_SPDXJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{"spdxVersion":"SPDX-2.3","packages":[]}`)
	d, _, err := detect.DetectBytes(data, "doc.json")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.SPDXJSON {
		t.Errorf("Dialect = %v, want SPDXJSON", d)
	}
}

func TestDetect_CycloneDXXML(t *testing.T) {
	t.Parallel()

	data := []byte(`<?xml version="1.0"?><bom xmlns="http://cyclonedx.org/schema/bom/1.5"></bom>`)
	d, _, err := detect.DetectBytes(data, "bom.xml")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.CycloneDXXML {
		t.Errorf("Dialect = %v, want CycloneDXXML", d)
	}
}

func TestDetect_SPDXRDFXML(t *testing.T) {
	t.Parallel()

	data := []byte(`<?xml version="1.0"?><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:spdx="http://spdx.org/rdf/terms#"></rdf:RDF>`)
	d, _, err := detect.DetectBytes(data, "doc.rdf")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.SPDXRDFXML {
		t.Errorf("Dialect = %v, want SPDXRDFXML", d)
	}
}

func TestDetect_SPDXTagValue(t *testing.T) {
	t.Parallel()

	data := []byte("SPDXVersion: SPDX-2.3\nDataLicense: CC0-1.0\n")
	d, _, err := detect.DetectBytes(data, "doc.spdx")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.SPDXTagValue {
		t.Errorf("Dialect = %v, want SPDXTagValue", d)
	}
}

func TestDetect_FallsBackToExtensionHint(t *testing.T) {
	t.Parallel()

	// Content alone is ambiguous JSON with no dialect marker; the
	// extension hint carries the dialect name.
	data := []byte(`{"foo":"bar"}`)
	d, conf, err := detect.DetectBytes(data, "my-cyclonedx-export.json")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d != detect.CycloneDXJSON {
		t.Errorf("Dialect = %v, want CycloneDXJSON", d)
	}
	if conf != detect.ConfidenceExtension {
		t.Errorf("Confidence = %v, want extension", conf)
	}
}

func TestDetect_UnknownReturnsUnsupportedFormat(t *testing.T) {
	t.Parallel()

	data := []byte(`{"foo":"bar"}`)
	d, conf, err := detect.DetectBytes(data, "data.txt")
	if err == nil {
		t.Fatal("Detect() expected error for undetectable input, got nil")
	}
	if d != detect.Unknown || conf != detect.ConfidenceAmbiguous {
		t.Errorf("Detect() = (%v, %v), want (Unknown, ambiguous)", d, conf)
	}
}
