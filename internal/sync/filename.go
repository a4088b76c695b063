// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sync

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// maxSlugLen bounds the slug portion of generated filenames.
const maxSlugLen = 60

// BaseFilename derives the extension-less output name for a document:
// the creation date followed by a slug of the title, as in
// "2025-10-28_q4-planning". The rendered transcript gets a .md suffix
// and the raw payload a .json suffix, both from this one base.
func BaseFilename(title string, createdAt time.Time) string {
	return createdAt.Format("2006-01-02") + "_" + Slugify(title)
}

// Slugify lowercases s, replaces every non-alphanumeric run with a single
// hyphen, and truncates to a bounded length. An empty or all-punctuation
// title yields "untitled".
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		cut := maxSlugLen
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = strings.Trim(slug[:cut], "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}
