package constants

import "strings"

// Format is the declared format identifier of an input document.
type Format string

const (
	TXT  Format = "txt"
	CSV  Format = "csv"
	MD   Format = "md"
	HTML Format = "html"
	PDF  Format = "pdf"
	PPTX Format = "pptx"
	DOCX Format = "docx"
	XLSX Format = "xlsx"
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	WEBP Format = "webp"
)

// SupportedFormats is the fixed set of format identifiers the extractor accepts.
var SupportedFormats = map[Format]struct{}{
	TXT: {}, CSV: {}, MD: {}, HTML: {}, PDF: {}, PPTX: {}, DOCX: {}, XLSX: {},
	PNG: {}, JPEG: {}, GIF: {}, BMP: {}, TIFF: {}, WEBP: {},
}

var extAliases = map[string]Format{
	"text":     TXT,
	"markdown": MD,
	"htm":      HTML,
	"jpg":      JPEG,
	"tif":      TIFF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat resolves an extension or format name to a Format. It returns "" when unknown.
func MapExtToFormat(ext string) Format {
	e := NormalizeExt(ext)
	if f, ok := extAliases[e]; ok {
		return f
	}
	if _, ok := SupportedFormats[Format(e)]; ok {
		return Format(e)
	}
	return ""
}

// IsSupported reports whether f is in the supported set.
func IsSupported(f Format) bool {
	_, ok := SupportedFormats[f]
	return ok
}

// IsImage reports whether f is a raster image format.
func IsImage(f Format) bool {
	switch f {
	case PNG, JPEG, GIF, BMP, TIFF, WEBP:
		return true
	}
	return false
}

// SupportedExtensions lists every extension (aliases included) accepted during ingestion.
func SupportedExtensions() map[string]struct{} {
	out := make(map[string]struct{}, len(SupportedFormats)+len(extAliases))
	for f := range SupportedFormats {
		out[string(f)] = struct{}{}
	}
	for a := range extAliases {
		out[a] = struct{}{}
	}
	return out
}
