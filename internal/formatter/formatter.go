// package formatter renders migration status, schema drift and presets as plain text, Markdown or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// Format selects an output renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
)

// ParseFormat accepts "text", "md"/"markdown" and "csv". An empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

func appliedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// StatusToCSV writes one row per migration with columns: ID, Name, State, AppliedAt, Lossy
func StatusToCSV(status *migrate.Status) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "State", "AppliedAt", "Lossy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range status.Entries {
		record := []string{
			strconv.FormatInt(entry.Migration.ID, 10),
			entry.Migration.Name,
			entry.State.String(),
			appliedAt(entry.AppliedAt),
			entry.Migration.Lossy,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// StatusToMarkdown renders the migration history as a Markdown table
func StatusToMarkdown(status *migrate.Status) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Migrations\n\n")
	fmt.Fprintf(&buf, "**Current**: %s\n", currentLabel(status))
	fmt.Fprintf(&buf, "**Pending**: %d\n\n", status.Pending)

	buf.WriteString("| ID | Name | State | Applied At |\n")
	buf.WriteString("|----|------|-------|------------|\n")
	for _, entry := range status.Entries {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n",
			entry.Migration.ID, entry.Migration.Name, entry.State, appliedAt(entry.AppliedAt))
	}

	return buf.Bytes(), nil
}

// StatusToText renders the migration history for a terminal
func StatusToText(status *migrate.Status) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", styles.title.Render("Migrations"))
	for _, entry := range status.Entries {
		line := fmt.Sprintf("%s  %s  %s", styles.State(entry.State), strconv.FormatInt(entry.Migration.ID, 10), entry.Migration.Name)
		if entry.AppliedAt != nil {
			line += " " + styles.muted.Render(appliedAt(entry.AppliedAt))
		}
		buf.WriteString(line + "\n")
	}
	fmt.Fprintf(&buf, "\nCurrent: %s, pending: %d\n", currentLabel(status), status.Pending)

	return buf.Bytes(), nil
}

func currentLabel(status *migrate.Status) string {
	if status.Current == 0 {
		return "none"
	}
	for _, entry := range status.Entries {
		if entry.Migration.ID == status.Current {
			return entry.Migration.Key()
		}
	}
	return strconv.FormatInt(status.Current, 10)
}

// RenderStatus renders status in format
func RenderStatus(status *migrate.Status, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return StatusToCSV(status)
	case FormatMarkdown:
		return StatusToMarkdown(status)
	default:
		return StatusToText(status)
	}
}

// DriftToText lists schema differences, one per line. No drift renders a single confirmation line.
func DriftToText(drift []migrate.Drift) []byte {
	var buf bytes.Buffer
	if len(drift) == 0 {
		fmt.Fprintf(&buf, "%s\n", styles.applied.Render("Schema matches the model"))
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "%s\n", styles.drift.Render(fmt.Sprintf("Schema drift (%d)", len(drift))))
	for _, d := range drift {
		fmt.Fprintf(&buf, "  - %s\n", d)
	}
	return buf.Bytes()
}

func likedTracks(s models.Settings) string {
	if s.IncludeLikedTracks == nil {
		return "default"
	}
	return strconv.FormatBool(*s.IncludeLikedTracks)
}

func overwriteMode(p *models.Playlist) string {
	if !p.Kind.IsTarget() {
		return ""
	}
	if p.ShouldOverwrite() {
		return "overwrite"
	}
	return "append"
}

// PresetsToText lists presets with their settings, marking the user's current one
func PresetsToText(presets []*models.Preset, current *int64) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", styles.title.Render(fmt.Sprintf("Presets (%d)", len(presets))))
	for _, p := range presets {
		marker := " "
		if current != nil && *current == p.ID {
			marker = styles.applied.Render("*")
		}
		fmt.Fprintf(&buf, "%s %d. %s %s\n", marker, p.ID, p.Name,
			styles.muted.Render(fmt.Sprintf("size=%d liked=%s recommendations=%t",
				p.Settings.PlaylistSize, likedTracks(p.Settings), p.Settings.RecommendationsEnabled)))
	}

	return buf.Bytes()
}

// PresetToMarkdown renders a preset and its playlists
func PresetToMarkdown(preset *models.Preset, playlists []*models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", preset.Name)
	fmt.Fprintf(&buf, "**Playlist size**: %d\n", preset.Settings.PlaylistSize)
	fmt.Fprintf(&buf, "**Liked tracks**: %s\n", likedTracks(preset.Settings))
	fmt.Fprintf(&buf, "**Recommendations**: %t\n\n", preset.Settings.RecommendationsEnabled)

	buf.WriteString("## Playlists\n\n")
	for i, p := range playlists {
		name := p.Name
		if name == "" {
			name = p.URL
		}
		line := fmt.Sprintf("%d. [%s](%s) (%s", i+1, name, p.URL, p.Kind)
		if mode := overwriteMode(p); mode != "" {
			line += ", " + mode
		}
		if p.Disabled {
			line += ", disabled"
		}
		buf.WriteString(line + ")\n")
	}

	return buf.Bytes(), nil
}

// PresetToText renders a preset and its playlists for a terminal
func PresetToText(preset *models.Preset, playlists []*models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Preset: %s\n", preset.Name)
	fmt.Fprintf(&buf, "Playlist size: %d\n", preset.Settings.PlaylistSize)
	fmt.Fprintf(&buf, "Playlists: %d\n\n", len(playlists))

	for i, p := range playlists {
		fmt.Fprintf(&buf, "%d. %s %s\n", i+1, p.Kind, p.URL)
	}

	return buf.Bytes(), nil
}

// Write copies data to w
func Write(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteFile writes data to path, or to w when path is empty.
func WriteFile(w io.Writer, path string, data []byte) error {
	if path == "" {
		return Write(w, data)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
