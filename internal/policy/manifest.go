package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotObject is returned when the manifest body is not a JSON object.
var ErrNotObject = errors.New("manifest is not a JSON object")

// Rejection records a manifest entry that was dropped during parsing.
type Rejection struct {
	Key    string
	Reason string
}

// Manifest is the normalized result of parsing hashes.json.
// Sets keeps the order of keys in the source document.
type Manifest struct {
	Sets     []PolicySet
	Rejected []Rejection
}

// Raw returns the number of entries present in the source document.
func (m Manifest) Raw() int {
	return len(m.Sets) + len(m.Rejected)
}

// rawEntry accepts every field spelling seen across upstream producer versions.
type rawEntry struct {
	FileID           string  `json:"file_id"`
	FileIDCamel      string  `json:"fileId"`
	URLs             rawURLs `json:"urls"`
	Category         string  `json:"category"`
	LastChecked      string  `json:"last_checked"`
	LastCheckedCamel string  `json:"lastChecked"`
	LastAmended      string  `json:"last_amended"`
	LastAmendedCamel string  `json:"lastAmended"`
	Hash             string  `json:"hash"`
}

// rawURLs decodes either [{"url": "..."}] or ["..."].
type rawURLs []SourceURL

func (u *rawURLs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*u = nil
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("urls: %w", err)
	}
	out := make(rawURLs, 0, len(elems))
	for _, el := range elems {
		var s string
		if err := json.Unmarshal(el, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, SourceURL{URL: s})
			}
			continue
		}
		var obj SourceURL
		if err := json.Unmarshal(el, &obj); err != nil {
			return fmt.Errorf("urls: %w", err)
		}
		if obj.URL = strings.TrimSpace(obj.URL); obj.URL != "" {
			out = append(out, obj)
		}
	}
	*u = out
	return nil
}

// ParseManifest normalizes a hashes.json document. Entries without a file id
// or without any URL are rejected, never returned. Only a body that is not a
// JSON object is an error.
func ParseManifest(data []byte) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Manifest{}, ErrNotObject
	}

	var m Manifest
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Manifest{}, fmt.Errorf("read manifest key: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Manifest{}, fmt.Errorf("read manifest entry %q: %w", key, err)
		}

		if seen[key] {
			m.Rejected = append(m.Rejected, Rejection{Key: key, Reason: "duplicate name"})
			continue
		}
		seen[key] = true

		set, reason := normalizeEntry(key, raw)
		if reason != "" {
			m.Rejected = append(m.Rejected, Rejection{Key: key, Reason: reason})
			continue
		}
		m.Sets = append(m.Sets, set)
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, fmt.Errorf("read manifest end: %w", err)
	}
	return m, nil
}

// normalizeEntry returns the canonical record, or a non-empty reason when the
// entry must be dropped.
func normalizeEntry(name string, raw json.RawMessage) (PolicySet, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// Legacy manifests mapped URL -> bare hash string.
		return PolicySet{}, "missing file_id"
	}

	var e rawEntry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return PolicySet{}, "malformed entry: " + err.Error()
	}

	set := PolicySet{
		Name:        name,
		FileID:      strings.TrimSpace(firstNonEmpty(e.FileID, e.FileIDCamel)),
		URLs:        []SourceURL(e.URLs),
		Category:    strings.TrimSpace(e.Category),
		LastChecked: firstNonEmpty(e.LastChecked, e.LastCheckedCamel),
		LastAmended: firstNonEmpty(e.LastAmended, e.LastAmendedCamel),
		Hash:        e.Hash,
	}
	switch {
	case set.FileID == "":
		return PolicySet{}, "missing file_id"
	case len(set.URLs) == 0:
		return PolicySet{}, "empty urls"
	}
	if set.Category == "" {
		set.Category = DefaultCategory
	}
	if set.LastChecked == "" {
		set.LastChecked = Unknown
	}
	return set, ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// rawAnalysis is the wire shape of analysis/{fileId}.json.
type rawAnalysis struct {
	Summary  string `json:"summary"`
	Analysis string `json:"analysis"`
	DateTime string `json:"date_time"`
	Priority string `json:"priority"`
}

// ParseAnalysis decodes an analysis artifact, defaulting absent fields.
func ParseAnalysis(data []byte) (Analysis, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Analysis{}, errors.New("decode analysis: not a JSON object")
	}
	var raw rawAnalysis
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	a := Analysis{
		Summary:  raw.Summary,
		Body:     raw.Analysis,
		DateTime: raw.DateTime,
		Priority: ParsePriority(raw.Priority),
	}
	if a.DateTime == "" {
		a.DateTime = Unknown
	}
	return a, nil
}
