// Package report formats elevation outcomes as text, JSON, CSV or YAML.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatYAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want text, json, csv or yaml)", s)
}

// Entry is one named outcome, typically one scene file. Err is set when the
// scene could not be processed at all.
type Entry struct {
	Name    string
	Outcome elevation.Outcome
	Err     error
}

// record is the serialised shape of an Entry.
type record struct {
	Name      string            `json:"name" yaml:"name"`
	Available bool              `json:"available" yaml:"available"`
	Result    *elevation.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Warnings  []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Quad      *geom.QuadInfo    `json:"quad,omitempty" yaml:"quad,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func toRecord(e Entry) record {
	r := record{
		Name:      e.Name,
		Available: e.Outcome.Available(),
		Result:    e.Outcome.Result,
		Warnings:  e.Outcome.Warnings,
		Quad:      e.Outcome.Quad,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

// Options tune the text format.
type Options struct {
	// Lang localises numbers in the text format (default English).
	Lang language.Tag
}

// Write encodes entries to w.
func Write(w io.Writer, f Format, entries []Entry, opts Options) error {
	var (
		out string
		err error
	)
	switch f {
	case FormatText:
		out = ToText(entries, opts)
	case FormatJSON:
		out, err = ToJSON(entries)
	case FormatCSV:
		out, err = ToCSV(entries)
	case FormatYAML:
		out, err = ToYAML(entries)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// ToJSON serialises entries as a pretty JSON array.
func ToJSON(entries []Entry) (string, error) {
	recs := make([]record, len(entries))
	for i, e := range entries {
		recs[i] = toRecord(e)
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// ToYAML serialises entries as a YAML sequence.
func ToYAML(entries []Entry) (string, error) {
	recs := make([]record, len(entries))
	for i, e := range entries {
		recs[i] = toRecord(e)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(recs); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var csvHeader = []string{
	"name", "available", "angle_deg", "height_used", "height_source", "height_px",
	"shadow_px", "shadow_corrected", "perspective", "scale", "warnings", "error",
}

// ToCSV exports one row per entry with a header.
func ToCSV(entries []Entry) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, e := range entries {
		row := make([]string, len(csvHeader))
		row[0] = e.Name
		row[1] = strconv.FormatBool(e.Outcome.Available())
		if r := e.Outcome.Result; r != nil {
			row[2] = fmtFloat(r.AngleDegrees)
			row[3] = fmtFloat(r.HeightUsed)
			row[4] = string(r.HeightSource)
			row[5] = fmtFloat(r.HeightPixels)
			row[6] = fmtFloat(r.ShadowPixels)
			row[7] = fmtFloat(r.ShadowCorrected)
			row[8] = strconv.FormatBool(r.PerspectiveApplied)
			row[9] = fmtFloat(r.ScaleFactor)
		}
		row[10] = strings.Join(e.Outcome.Warnings, "; ")
		if e.Err != nil {
			row[11] = e.Err.Error()
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// ToText renders a human readable summary per entry.
func ToText(entries []Entry, opts Options) string {
	lang := opts.Lang
	if lang == language.Und {
		lang = language.English
	}
	p := message.NewPrinter(lang)

	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if e.Name != "" {
			sb.WriteString(e.Name + "\n")
		}
		if e.Err != nil {
			p.Fprintf(&sb, "  error: %v\n", e.Err)
			continue
		}
		r := e.Outcome.Result
		if r == nil {
			sb.WriteString("  angle: unavailable\n")
		} else {
			p.Fprintf(&sb, "  angle: %.2f°\n", r.AngleDegrees)
			p.Fprintf(&sb, "  height: %.2f (%s, %.2f px)\n", r.HeightUsed, r.HeightSource, r.HeightPixels)
			if r.PerspectiveApplied {
				p.Fprintf(&sb, "  shadow: %.2f px, corrected %.4f (scale %.6f)\n", r.ShadowPixels, r.ShadowCorrected, r.ScaleFactor)
			} else {
				p.Fprintf(&sb, "  shadow: %.2f px (no perspective correction)\n", r.ShadowPixels)
			}
		}
		for _, w := range e.Outcome.Warnings {
			sb.WriteString("  warning: " + w + "\n")
		}
	}
	return sb.String()
}
