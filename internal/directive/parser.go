// Package directive tokenizes the bracketed directive protocol that the model
// embeds in its answers:
//
//	[THEME:#RRGGBB]                 anchored at the start of the document
//	[COVER_IMAGE_PROMPT: text]      first occurrence, single line
//	[GENERATE_IMAGE: text]          first occurrence, single line
//	[GENERATE_COMIC: ["p1","p2"]]   payload must be a JSON array of strings
//
// Parsing is separate from splicing: Parse returns typed directives with byte
// offsets into the source and never rewrites text itself.
package directive

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Kind identifies a directive. The numeric order is the resolution order.
type Kind int

const (
	KindTheme Kind = iota
	KindCover
	KindGenerateImage
	KindComic
)

func (k Kind) String() string {
	switch k {
	case KindTheme:
		return "THEME"
	case KindCover:
		return "COVER_IMAGE_PROMPT"
	case KindGenerateImage:
		return "GENERATE_IMAGE"
	case KindComic:
		return "GENERATE_COMIC"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Directive is one recognised tag
type Directive struct {
	Kind  Kind
	Start int // byte offset of the opening bracket
	End   int // byte offset one past the tag (theme includes trailing whitespace)
	Raw   string

	// Payload is the theme colour, the trimmed prompt, or the raw JSON array
	Payload string
	// Prompts holds the decoded comic panels
	Prompts []string
	// Err is set when a comic payload does not decode; such a directive must
	// be left in place by the caller.
	Err error
}

// Valid reports whether the directive can be resolved
func (d Directive) Valid() bool {
	return d.Err == nil
}

// Extraction is the result of Extract
type Extraction struct {
	Theme          string
	CoverPrompt    string
	GenImagePrompt string
	ComicPrompts   []string

	// CoverSuppressed is true when a cover tag exists but the document also
	// carries generated interactive content.
	CoverSuppressed bool
	// ComicErr records a malformed comic payload, for diagnostics only
	ComicErr error

	// CleanedText is the source with every resolvable directive removed.
	// Malformed comic tags stay in place.
	CleanedText string
	Directives  []Directive
}

const (
	themePrefix = "[THEME:"
	coverPrefix = "[COVER_IMAGE_PROMPT:"
	imagePrefix = "[GENERATE_IMAGE:"
	comicPrefix = "[GENERATE_COMIC:"
)

// Parse scans text and returns at most one directive per kind, ordered by
// kind. Later kinds never overlap an earlier accepted span.
func Parse(text string) []Directive {
	var out []Directive

	if d, ok := scanTheme(text); ok {
		out = append(out, d)
	}
	for _, k := range []Kind{KindCover, KindGenerateImage, KindComic} {
		if d, ok := scanTag(text, k, out); ok {
			out = append(out, d)
		}
	}
	return out
}

// Extract parses text and returns the surfaced values plus the cleaned text
func Extract(text string) Extraction {
	ex := Extraction{Directives: Parse(text)}
	suppressed := SuppressesCover(text)

	var strip []Directive
	for _, d := range ex.Directives {
		switch d.Kind {
		case KindTheme:
			ex.Theme = d.Payload
		case KindCover:
			if suppressed {
				ex.CoverSuppressed = true
			} else {
				ex.CoverPrompt = d.Payload
			}
		case KindGenerateImage:
			ex.GenImagePrompt = d.Payload
		case KindComic:
			if !d.Valid() {
				ex.ComicErr = d.Err
				continue
			}
			ex.ComicPrompts = d.Prompts
		}
		strip = append(strip, d)
	}

	repl := make([]Replacement, len(strip))
	for i, d := range strip {
		repl[i] = Replacement{Directive: d}
	}
	ex.CleanedText = Splice(text, repl)
	return ex
}

// SuppressesCover reports whether the document embeds an HTML artifact or a
// 3D viewer, in which case cover images are not generated.
func SuppressesCover(text string) bool {
	return strings.Contains(text, domain.HTMLFence) || strings.Contains(text, domain.ModelViewerMarker)
}

// Replacement pairs a directive span with the text that takes its place
type Replacement struct {
	Directive Directive
	Text      string
}

// Splice replaces each directive span in src. Spans must come from Parse on
// the same src; they are applied back to front so offsets stay valid.
func Splice(src string, repl []Replacement) string {
	if len(repl) == 0 {
		return src
	}
	sorted := make([]Replacement, len(repl))
	copy(sorted, repl)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Directive.Start > sorted[j].Directive.Start
	})

	out := src
	for _, r := range sorted {
		d := r.Directive
		if d.Start < 0 || d.End > len(out) || d.Start > d.End {
			continue
		}
		out = out[:d.Start] + r.Text + out[d.End:]
	}
	return out
}

func scanTheme(text string) (Directive, bool) {
	if !strings.HasPrefix(text, themePrefix+"#") {
		return Directive{}, false
	}
	colorStart := len(themePrefix)
	colorEnd := colorStart + 7
	if len(text) <= colorEnd || text[colorEnd] != ']' {
		return Directive{}, false
	}
	color := text[colorStart:colorEnd]
	if !isHexColor(color) {
		return Directive{}, false
	}
	if _, err := colorful.Hex(color); err != nil {
		return Directive{}, false
	}

	end := skipSpace(text, colorEnd+1)
	return Directive{
		Kind:    KindTheme,
		Start:   0,
		End:     end,
		Raw:     text[:end],
		Payload: color,
	}, true
}

func scanTag(text string, kind Kind, taken []Directive) (Directive, bool) {
	prefix := prefixFor(kind)
	from := 0
	for from < len(text) {
		idx := strings.Index(text[from:], prefix)
		if idx < 0 {
			return Directive{}, false
		}
		start := from + idx
		from = start + 1

		var d Directive
		var ok bool
		if kind == KindComic {
			d, ok = matchComic(text, start)
		} else {
			d, ok = matchPrompt(text, start, kind)
		}
		if !ok || overlaps(d, taken) {
			continue
		}
		return d, true
	}
	return Directive{}, false
}

// matchPrompt matches `PREFIX .+? ]` on a single line
func matchPrompt(text string, start int, kind Kind) (Directive, bool) {
	bodyStart := start + len(prefixFor(kind))
	if bodyStart >= len(text) {
		return Directive{}, false
	}
	// at least one body character, which may itself be ']'
	_, size := utf8.DecodeRuneInString(text[bodyStart:])
	if isLineTerminator(text[bodyStart:]) {
		return Directive{}, false
	}
	for i := bodyStart + size; i < len(text); {
		if isLineTerminator(text[i:]) {
			return Directive{}, false
		}
		if text[i] == ']' {
			return Directive{
				Kind:    kind,
				Start:   start,
				End:     i + 1,
				Raw:     text[start : i+1],
				Payload: strings.TrimSpace(text[bodyStart:i]),
			}, true
		}
		_, n := utf8.DecodeRuneInString(text[i:])
		i += n
	}
	return Directive{}, false
}

// matchComic matches `[GENERATE_COMIC:\s*(\[.*?\])\]`
func matchComic(text string, start int) (Directive, bool) {
	open := skipSpace(text, start+len(comicPrefix))
	if open >= len(text) || text[open] != '[' {
		return Directive{}, false
	}
	for i := open + 1; i+1 < len(text); {
		if isLineTerminator(text[i:]) {
			return Directive{}, false
		}
		if text[i] == ']' && text[i+1] == ']' {
			payload := text[open : i+1]
			d := Directive{
				Kind:    KindComic,
				Start:   start,
				End:     i + 2,
				Raw:     text[start : i+2],
				Payload: payload,
			}
			d.Prompts, d.Err = decodePrompts(payload)
			return d, true
		}
		_, n := utf8.DecodeRuneInString(text[i:])
		i += n
	}
	return Directive{}, false
}

func decodePrompts(payload string) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode comic prompts: %w", err)
	}
	prompts := make([]string, 0, len(raw))
	for i, r := range raw {
		var p string
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, fmt.Errorf("comic prompt %d is not a string: %w", i, err)
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

func prefixFor(kind Kind) string {
	switch kind {
	case KindTheme:
		return themePrefix
	case KindCover:
		return coverPrefix
	case KindGenerateImage:
		return imagePrefix
	default:
		return comicPrefix
	}
}

func overlaps(d Directive, taken []Directive) bool {
	for _, t := range taken {
		if d.Start < t.End && t.Start < d.End {
			return true
		}
	}
	return false
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, n := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) && r != '\ufeff' {
			break
		}
		i += n
	}
	return i
}

// isLineTerminator mirrors the characters a regexp '.' refuses to match
func isLineTerminator(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}
