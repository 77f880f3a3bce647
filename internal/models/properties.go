// Package models defines the domain types for Ansuz.
package models

// Properties is the structured metadata derived from a note's content.
// Tags is the only mandatory field; everything else stays empty when the
// model could not determine it.
type Properties struct {
	Tags    []string `json:"tags"`
	Title   string   `json:"title,omitempty"`
	Author  string   `json:"author,omitempty"`
	Date    string   `json:"date,omitempty"`
	Source  string   `json:"source,omitempty"`
	URL     string   `json:"url,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Usable reports whether the result carries at least one tag.
func (p *Properties) Usable() bool {
	return p != nil && len(p.Tags) > 0
}

// MergeResult describes the outcome of a frontmatter merge.
type MergeResult struct {
	Updated bool   `json:"updated"`
	Message string `json:"message"`
}

// CheckResult reports provider reachability and auth validity.
type CheckResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
