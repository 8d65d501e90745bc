package metadata

import (
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strings"
)

// SlideSummary is the display-oriented view of one image handed to the
// slideshow frontend.
type SlideSummary struct {
	Filename    string `json:"filename"`
	Filepath    string `json:"filepath"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

// FormatSlide renders a raw metadata record for display. InvokeAI-style
// generation records and plain EXIF records get different renderings;
// the raw record stays untouched in the index.
func FormatSlide(path string, raw json.RawMessage) SlideSummary {
	summary := SlideSummary{
		Filename: filepath.Base(path),
		Filepath: filepath.ToSlash(path),
	}

	var fields map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &fields)
	}
	if len(fields) == 0 {
		summary.Description = "<i>No metadata available.</i>"
		return summary
	}

	if isGenerated(fields) {
		summary.Description = formatGenerated(fields)
	} else {
		summary.Description = formatEXIF(fields)
	}
	return summary
}

// isGenerated detects AI-generation records by their marker keys. A
// heuristic carried over from the tool variants seen in the wild.
func isGenerated(fields map[string]any) bool {
	for _, key := range []string{"app_version", "generation_mode", "canvas_v2_metadata"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func formatGenerated(fields map[string]any) string {
	var b strings.Builder
	if prompt := firstString(fields, "positive_prompt", "prompt"); prompt != "" {
		fmt.Fprintf(&b, "<b>Prompt:</b> %s<br>", html.EscapeString(prompt))
	}
	if model := modelName(fields); model != "" {
		fmt.Fprintf(&b, "<b>Model:</b> %s<br>", html.EscapeString(model))
	}
	for _, key := range []string{"seed", "steps", "cfg_scale", "scheduler"} {
		if v, ok := fields[key]; ok {
			fmt.Fprintf(&b, "<b>%s:</b> %s<br>", titleCase(key), html.EscapeString(fmt.Sprint(v)))
		}
	}
	if b.Len() == 0 {
		return "<i>AI-generated image.</i>"
	}
	return b.String()
}

func formatEXIF(fields map[string]any) string {
	var b strings.Builder
	if camera := strings.TrimSpace(firstString(fields, "Make") + " " + firstString(fields, "Model")); camera != "" {
		fmt.Fprintf(&b, "<b>Camera:</b> %s<br>", html.EscapeString(camera))
	}
	labels := []struct{ key, label string }{
		{"DateTimeOriginal", "Taken"},
		{"DateTime", "Taken"},
		{"ExposureTime", "Exposure"},
		{"FNumber", "Aperture"},
		{"ISOSpeedRatings", "ISO"},
		{"FocalLength", "Focal length"},
		{"LensModel", "Lens"},
	}
	seen := map[string]bool{}
	for _, l := range labels {
		v, ok := fields[l.key]
		if !ok || seen[l.label] {
			continue
		}
		seen[l.label] = true
		fmt.Fprintf(&b, "<b>%s:</b> %s<br>", l.label, html.EscapeString(fmt.Sprint(v)))
	}
	lat, okLat := fields["GPSLatitude"]
	long, okLong := fields["GPSLongitude"]
	if okLat && okLong {
		fmt.Fprintf(&b, "<b>Location:</b> %v, %v<br>", lat, long)
	}
	if b.Len() == 0 {
		return "<i>No metadata available.</i>"
	}
	return b.String()
}

// modelName digs the model name out of the nested shapes the different
// generator versions use.
func modelName(fields map[string]any) string {
	switch m := fields["model"].(type) {
	case string:
		return m
	case map[string]any:
		return firstString(m, "name", "model_name", "key")
	}
	return firstString(fields, "model_name")
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func titleCase(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
