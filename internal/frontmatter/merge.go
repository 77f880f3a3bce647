package frontmatter

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// tagCap is the tag count at which unforced merges stop adding tags, to
// avoid runaway accumulation across repeated runs.
const tagCap = 5

// MergeTags unions newTags into the document's tags entry.
//
// Without force, a document that already has tagCap or more tags is left
// alone and the result reports "skipped". Existing tags keep their order
// and case; new tags are appended, deduplicated case-insensitively.
func (d *Document) MergeTags(newTags []string, force bool) models.MergeResult {
	existing := d.block.StringList("tags")
	if !force && len(existing) >= tagCap {
		return models.MergeResult{
			Updated: false,
			Message: fmt.Sprintf("already has %d tags, skipped", len(existing)),
		}
	}
	merged, added := union(existing, newTags)
	if added == 0 {
		return models.MergeResult{Updated: false, Message: "tags already up to date"}
	}
	d.block.Set("tags", merged)
	return models.MergeResult{Updated: true, Message: fmt.Sprintf("added %d tags", added)}
}

// MergeProperties applies a full generated property set: tags via
// MergeTags, aliases unioned without a cap, and non-empty scalar fields
// overwriting existing values.
func (d *Document) MergeProperties(p *models.Properties, force bool) models.MergeResult {
	var parts []string
	updated := false

	tagRes := d.MergeTags(p.Tags, force)
	if tagRes.Updated {
		updated = true
	}
	parts = append(parts, tagRes.Message)

	if len(p.Aliases) > 0 {
		merged, added := union(d.block.StringList("aliases"), p.Aliases)
		if added > 0 {
			d.block.Set("aliases", merged)
			updated = true
			parts = append(parts, fmt.Sprintf("added %d aliases", added))
		}
	}

	var changed []string
	for _, f := range []struct{ key, value string }{
		{"title", p.Title},
		{"author", p.Author},
		{"date", p.Date},
		{"source", p.Source},
		{"url", p.URL},
		{"summary", p.Summary},
	} {
		if f.value == "" || d.block.Scalar(f.key) == f.value {
			continue
		}
		d.block.Set(f.key, f.value)
		changed = append(changed, f.key)
	}
	if len(changed) > 0 {
		updated = true
		parts = append(parts, "set "+strings.Join(changed, ", "))
	}

	if !updated {
		return models.MergeResult{Updated: false, Message: "already up to date"}
	}
	return models.MergeResult{Updated: true, Message: strings.Join(parts, "; ")}
}

// union appends items from add that are not already present in base,
// comparing case-insensitively. Returns the merged list and the number of
// additions.
func union(base, add []string) ([]string, int) {
	seen := make(map[string]struct{}, len(base))
	merged := make([]string, 0, len(base)+len(add))
	for _, t := range base {
		seen[strings.ToLower(t)] = struct{}{}
		merged = append(merged, t)
	}
	added := 0
	for _, t := range add {
		k := strings.ToLower(strings.TrimSpace(t))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, strings.TrimSpace(t))
		added++
	}
	return merged, added
}
