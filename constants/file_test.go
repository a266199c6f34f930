package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExtToKind(t *testing.T) {
	cases := map[string]FileKind{
		".pdf":  PDF,
		"PDF":   PDF,
		".JPG":  Image,
		"bmp":   Image,
		".docx": Document,
		"xlsx":  Document,
		".eml":  Email,
		".txt":  "",
		"":      "",
	}
	for ext, want := range cases {
		assert.Equal(t, want, MapExtToKind(ext), "ext %q", ext)
	}
}

func TestAllowedExtensionsMapToKinds(t *testing.T) {
	// discovery and extraction must agree on what is supported
	for ext := range AllowedExtensions {
		assert.NotEqual(t, FileKind(""), MapExtToKind(ext), "allowed extension %q has no kind", ext)
	}
}
