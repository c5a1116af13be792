// Corpus chunk: full-text search support. Every string value is split
// into stopword-filtered terms, and every term expands into every
// substring at least Config.MinSearchIndexSize long and at most
// MaxSearchSubstringLength long, starting at every position, so a query
// for any infix of a term that was actually written finds it (spec.md
// §4.2, §4.3 search semantics).
package vellum

import "strings"

func newCorpusChunk(expected int) *chunk {
	return newChunk(func(w Write) []byte { return []byte(w.Key) }, expected)
}

// corpusEntries expands w into zero or more synthetic writes whose Key
// holds a substring term and whose Value/Record/Version/Action mirror
// the original write, ready to be acquired into a corpus chunk. Only
// string-typed values produce entries.
func corpusEntries(w Write, cfg Config) []Write {
	if w.Value.Type() != TypeString {
		return nil
	}
	stopwords := cfg.stopwordSet()
	fields := strings.Fields(strings.ToLower(w.Value.Str()))

	var out []Write
	seen := make(map[string]bool)
	for _, term := range fields {
		term = strings.Trim(term, ".,;:!?\"'()[]{}")
		if term == "" || stopwords[term] {
			continue
		}
		for start := 0; start < len(term); start++ {
			maxLen := len(term) - start
			if cfg.MaxSearchSubstringLength < maxLen {
				maxLen = cfg.MaxSearchSubstringLength
			}
			for n := cfg.MinSearchIndexSize; n <= maxLen; n++ {
				sub := term[start : start+n]
				if seen[sub] {
					continue
				}
				seen[sub] = true
				out = append(out, Write{
					Action:  w.Action,
					Key:     sub,
					Value:   w.Value,
					Record:  w.Record,
					Version: w.Version,
					Hash:    w.Hash,
				})
			}
		}
	}
	return out
}

// corpusTermWrites returns every (synthetic) write indexed under term.
func corpusTermWrites(c *chunk, term string) []Write {
	return c.seek([]byte(strings.ToLower(term)))
}
