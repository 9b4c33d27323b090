package inspect

import "strings"

// minListingTokens is the number of whitespace-separated tokens a listing
// line must have to be considered well-formed. Lines with fewer tokens are
// truncated or corrupted output and are dropped.
const minListingTokens = 9

// Entry is one parsed row of a long-format directory listing.
// All fields are kept as raw strings: the link count is not required to be
// numeric, the size may carry a K/M/G suffix, and the three date tokens are
// locale and tool dependent, so none of them are parsed further here.
type Entry struct {
	// Permissions is the mode string; a leading 'd' marks a directory.
	Permissions string `json:"permissions"`
	// Links is the hard-link count, verbatim.
	Links string `json:"links"`
	// Owner is the owning user name.
	Owner string `json:"owner"`
	// Group is the owning group name.
	Group string `json:"group"`
	// Size is the raw size token, either plain bytes or a suffixed human value.
	Size string `json:"size"`
	// Month, Day and Time are the three raw modification-date tokens.
	Month string `json:"month"`
	Day   string `json:"day"`
	Time  string `json:"time"`
	// Name is the file name, rejoined with single spaces when it contains
	// embedded whitespace.
	Name string `json:"name"`
}

// IsDir reports whether the entry describes a directory. Symlinks, devices
// and other special types deliberately count as non-directories, so
// directory and file counts always sum to the total.
func (e Entry) IsDir() bool {
	return strings.HasPrefix(e.Permissions, "d")
}

// Parse converts raw `ls -lrth` stdout into an ordered slice of entries.
//
// A leading "total" block-count line is skipped. Each remaining non-blank
// line is split on runs of whitespace; lines with fewer than 9 tokens are
// dropped silently. Tokens 0-7 map positionally to the entry fields and all
// trailing tokens form the name, which keeps file names with embedded
// spaces intact. Input order is preserved; with -t and -r that is the
// reverse-time order the listing command produced.
func Parse(raw string) []Entry {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	lines := strings.Split(raw, "\n")
	if strings.HasPrefix(lines[0], "total") {
		lines = lines[1:]
	}

	entries := make([]Entry, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		if len(tokens) < minListingTokens {
			continue
		}

		entries = append(entries, Entry{
			Permissions: tokens[0],
			Links:       tokens[1],
			Owner:       tokens[2],
			Group:       tokens[3],
			Size:        tokens[4],
			Month:       tokens[5],
			Day:         tokens[6],
			Time:        tokens[7],
			Name:        strings.Join(tokens[8:], " "),
		})
	}

	return entries
}
