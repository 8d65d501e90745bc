// Package metadata extracts descriptive metadata from image files and
// renders it for slideshow display. AI-generation parameters embedded by
// known tools take priority over plain EXIF.
package metadata

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// aiMetadataKeys are the PNG text-chunk keys written by known AI image
// generators, in priority order.
var aiMetadataKeys = []string{"invokeai_metadata", "Sd-metadata", "sd-metadata"}

// Extract pulls metadata out of raw image bytes as a JSON object.
// Strategy order: AI-generator text chunks first, then EXIF. A chunk
// whose value is not valid JSON is logged and skipped rather than
// failing the image. Images without any metadata return an empty object.
func Extract(data []byte) json.RawMessage {
	chunks := pngTextChunks(data)
	for _, key := range aiMetadataKeys {
		raw, ok := chunks[key]
		if !ok {
			continue
		}
		if !json.Valid([]byte(raw)) {
			log.Printf("warning: failed to parse %s metadata, trying next strategy", key)
			continue
		}
		return json.RawMessage(raw)
	}

	if fields := extractEXIF(data); len(fields) > 0 {
		if raw, err := json.Marshal(fields); err == nil {
			return raw
		}
	}
	return json.RawMessage(`{}`)
}

// exifWalker collects every parsed EXIF field, including the GPS and
// interop sub-IFDs, into a flat map.
type exifWalker struct {
	fields map[string]any
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	switch tag.Format() {
	case tiff.IntVal:
		if v, err := tag.Int(0); err == nil {
			w.fields[string(name)] = v
			return nil
		}
	case tiff.StringVal:
		if v, err := tag.StringVal(); err == nil {
			w.fields[string(name)] = strings.TrimSpace(v)
			return nil
		}
	}
	w.fields[string(name)] = strings.Trim(tag.String(), `"`)
	return nil
}

func extractEXIF(data []byte) map[string]any {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	w := &exifWalker{fields: map[string]any{}}
	if err := x.Walk(w); err != nil {
		return nil
	}
	if lat, long, err := x.LatLong(); err == nil {
		w.fields["GPSLatitude"] = lat
		w.fields["GPSLongitude"] = long
	}
	return w.fields
}
