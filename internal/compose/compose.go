// Package compose builds the final message text from an item's body,
// mention list and tag list.
//
// Compose is pure and total: it never fails, whatever the stored lists
// look like. Malformed lists degrade to the word-like tokens found in them.
package compose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/threadpost/internal/content"
)

// DefaultMaxLength is the X (Twitter) post length limit.
const DefaultMaxLength = 280

const (
	mentionSigil = "@"
	tagSigil     = "#"
)

var tokenPattern = regexp.MustCompile(`[@#]?[\p{L}\p{N}_]+`)

// ParseList decodes a stored mention or tag list.
//
// A JSON array yields its string and number elements in order. Valid JSON
// of any other shape yields nothing. Anything that is not valid JSON is
// scanned for tokens of letters, digits and underscores with an optional
// leading sigil.
func ParseList(raw content.RawList) []string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil || dec.More() {
		return tokenPattern.FindAllString(s, -1)
	}

	elems, ok := parsed.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		}
	}
	return out
}

// EncodeList renders values as the JSON array form stored by the stores.
func EncodeList(values []string) (content.RawList, error) {
	if len(values) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return content.RawList(strings.TrimSpace(buf.String())), nil
}

// Length counts characters the way the publishing API does: code points of
// the NFC-normalised text.
func Length(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// Compose builds the message text.
//
// Mentions are prefixed with "@" when missing and placed before the body,
// space separated. Tags are prefixed with "#" when missing and appended
// after a blank line, but only when the result stays within limit; otherwise
// the tags are dropped. A limit of zero or less disables the check.
func Compose(body string, mentions, tags []string, limit int) string {
	text := body

	if handles := withSigil(mentions, mentionSigil); len(handles) > 0 {
		text = strings.Join(handles, " ") + " " + text
	}

	markers := withSigil(tags, tagSigil)
	if len(markers) == 0 {
		return text
	}

	tagLine := strings.Join(markers, " ")
	if limit > 0 && Length(text)+Length(tagLine)+2 > limit {
		return text
	}
	return text + "\n\n" + tagLine
}

// ForItem composes the message for a stored item.
func ForItem(it content.Item, limit int) string {
	return Compose(it.Body, ParseList(it.Mentions), ParseList(it.Tags), limit)
}

func withSigil(values []string, sigil string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || v == sigil {
			continue
		}
		if !strings.HasPrefix(v, sigil) {
			v = sigil + v
		}
		out = append(out, v)
	}
	return out
}
