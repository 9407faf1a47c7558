package protocol

import (
	"errors"
	"strings"
)

// ErrBadListing is returned by ParseListing for text without a header line.
var ErrBadListing = errors.New("malformed directory listing")

// Listing is the immediate contents of one directory.
type Listing struct {
	Dir   string
	Dirs  []string
	Files []string
}

// Render formats the listing as
//
//	Current Directory: <dir>:
//	-- <subdir>
//	-- <file>
//
// directories first, then files.
func (l Listing) Render() string {
	var b strings.Builder
	b.WriteString(ListingHeader)
	b.WriteString(l.Dir)
	b.WriteByte(':')
	for _, d := range l.Dirs {
		b.WriteString(ListingMarker)
		b.WriteString(d)
	}
	for _, f := range l.Files {
		b.WriteString(ListingMarker)
		b.WriteString(f)
	}
	return b.String()
}

// ParsedListing is a listing read back from text. The text form does not
// tell directories from files, so entries keep their rendered order.
type ParsedListing struct {
	Dir     string
	Entries []string
}

// Contains reports whether name is one of the entries.
func (p ParsedListing) Contains(name string) bool {
	for _, e := range p.Entries {
		if e == name {
			return true
		}
	}
	return false
}

// ParseListing parses text produced by Listing.Render.
func ParseListing(text string) (ParsedListing, error) {
	lines := strings.Split(text, "\n")
	header := lines[0]
	if !strings.HasPrefix(header, ListingHeader) || !strings.HasSuffix(header, ":") {
		return ParsedListing{}, ErrBadListing
	}
	p := ParsedListing{
		Dir: strings.TrimSuffix(strings.TrimPrefix(header, ListingHeader), ":"),
	}
	marker := strings.TrimPrefix(ListingMarker, "\n")
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, marker) {
			return ParsedListing{}, ErrBadListing
		}
		p.Entries = append(p.Entries, strings.TrimPrefix(line, marker))
	}
	return p, nil
}
