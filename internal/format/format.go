// Package format turns orchestrator output into discrete message units
// bounded by platform limits.
package format

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ryanhideo/tablescout/internal/search"
)

// MaxTextLen is the hard per-unit text limit. Longer prose is truncated
// with a visible marker, never silently dropped.
const MaxTextLen = 4900

// TruncationMarker is appended to truncated text.
const TruncationMarker = "\n\n...(response truncated due to length)"

// maxInlinePhotos caps photo URLs extracted from one prose unit.
const maxInlinePhotos = 2

var photoPattern = regexp.MustCompile(`https://s3-media[^\s)]+\.jpg`)

// MessageUnit is one outbound message: either free text with optional
// photos, or a structured restaurant card. Exactly one branch is set.
type MessageUnit struct {
	Text   string
	Photos []string
	Card   *search.Entity
}

// IsCard reports whether the unit renders as a structured card.
func (u *MessageUnit) IsCard() bool {
	return u.Card != nil
}

// Units builds the outbound message list. Prose fragments come first, one
// unit each; every entity then becomes its own card unit. Prose and cards
// are never merged into one unit since the transport renders each unit as
// a separate element.
func Units(fragments []string, entities []search.Entity) []MessageUnit {
	var units []MessageUnit
	for _, fragment := range fragments {
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		units = append(units, TextUnit(fragment))
	}
	for i := range entities {
		entity := entities[i]
		units = append(units, MessageUnit{Card: &entity})
	}
	return units
}

// TextUnit builds one text unit, pulling embedded photo URLs out of the
// prose and enforcing the length limit.
func TextUnit(body string) MessageUnit {
	photos := ExtractPhotos(body)
	for _, p := range photos {
		body = strings.ReplaceAll(body, p, "")
	}
	body = strings.TrimSpace(body)
	return MessageUnit{Text: Truncate(body), Photos: photos}
}

// Truncate enforces the per-unit length limit with a visible marker. The
// cut never splits a multi-byte rune.
func Truncate(s string) string {
	if len(s) <= MaxTextLen {
		return s
	}
	cut := MaxTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}

// ExtractPhotos returns up to two photo URLs pattern-matched from prose.
func ExtractPhotos(s string) []string {
	matches := photoPattern.FindAllString(s, maxInlinePhotos)
	return matches
}

// CleanURL strips tracking query parameters from a business link.
func CleanURL(raw string) string {
	if idx := strings.Index(raw, "?"); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
