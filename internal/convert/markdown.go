// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert renders raw transcript payloads into Markdown documents
// with YAML frontmatter.
package convert

import (
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/granary/pkg/types"
)

// generator is the tool tag written into every frontmatter block.
const generator = "granary 0.1"

// MarkdownOutput holds the two halves of a rendered document. The full file
// is "---\n" + FrontmatterYAML + "---\n\n" + Body.
type MarkdownOutput struct {
	FrontmatterYAML string
	Body            string
}

// Full assembles the complete Markdown file content.
func (o MarkdownOutput) Full() string {
	return "---\n" + o.FrontmatterYAML + "---\n\n" + o.Body
}

// ToMarkdown renders a transcript and its metadata. It is a pure function of
// its inputs; all I/O stays with the caller.
func ToMarkdown(raw *types.Transcript, meta *types.DocumentMetadata, docID string) (MarkdownOutput, error) {
	fm := types.Frontmatter{
		DocID:           docID,
		Source:          "granola",
		CreatedAt:       meta.CreatedAt,
		RemoteUpdatedAt: meta.UpdatedAt,
		Title:           meta.Title,
		Participants:    meta.Participants,
		DurationSeconds: meta.DurationSeconds,
		Labels:          meta.Labels,
		Generator:       generator,
	}
	if fm.Participants == nil {
		fm.Participants = []string{}
	}

	fmYAML, err := yaml.Marshal(fm)
	if err != nil {
		return MarkdownOutput{}, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	title := meta.Title
	if title == "" {
		title = "Untitled Meeting"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	metaParts := []string{"Date: " + meta.CreatedAt.Format("2006-01-02")}
	if meta.DurationSeconds > 0 {
		metaParts = append(metaParts, fmt.Sprintf("Duration: %dm", meta.DurationSeconds/60))
	}
	if len(meta.Participants) > 0 {
		metaParts = append(metaParts, "Participants: "+strings.Join(meta.Participants, ", "))
	}
	fmt.Fprintf(&b, "_%s_\n\n", strings.Join(metaParts, " · "))

	if len(raw.Entries) == 0 {
		b.WriteString("_No transcript content available._\n")
	} else {
		for _, entry := range raw.Entries {
			speaker := entry.Speaker
			if speaker == "" {
				speaker = "Speaker"
			}
			ts := ""
			if norm := NormalizeTimestamp(entry.Start); norm != "" {
				ts = " (" + norm + ")"
			}
			fmt.Fprintf(&b, "**%s%s:** %s\n", speaker, ts, entry.Text)
		}
	}

	return MarkdownOutput{
		FrontmatterYAML: string(fmYAML),
		Body:            b.String(),
	}, nil
}

// NormalizeTimestamp converts an entry timestamp to HH:MM:SS form. It
// accepts RFC3339 instants (time of day in the instant's zone) and
// HH:MM:SS[.sss] strings (subseconds stripped). Unparseable input yields "".
func NormalizeTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format("15:04:05")
	}
	// HH:MM:SS.sss form: strip subseconds.
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		ts = ts[:i]
	}
	if len(strings.Split(ts, ":")) == 3 {
		return ts
	}
	return ""
}
