package tagger

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

var (
	tagTokenRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9/_-]*$`)
	hashtagRe   = regexp.MustCompile(`#([A-Za-z][A-Za-z0-9_/-]*)`)
	capitalRe   = regexp.MustCompile(`\b[A-Z][A-Za-z0-9-]{2,}\b`)
	numberingRe = regexp.MustCompile(`^\d+[.)]\s*`)
)

// parseTags extracts a tag list from raw model output. Strategies, in
// order: a JSON string array anywhere in the output, a comma/semicolon/
// newline delimited list, and finally a token heuristic over the text.
func parseTags(raw string, max int) []string {
	if tags := jsonArrayTags(raw); len(tags) > 0 {
		return capList(normalizeTags(tags), max)
	}
	if tags := delimitedTags(raw); len(tags) > 0 {
		return capList(tags, max)
	}
	return capList(heuristicTags(raw), max)
}

// jsonArrayTags finds the first JSON string array in raw.
func jsonArrayTags(raw string) []string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &tags); err != nil {
		return nil
	}
	return tags
}

// delimitedTags splits raw on common delimiters and normalizes each token.
func delimitedTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	var tokens []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		f = strings.TrimLeft(f, "•-* \t")
		f = numberingRe.ReplaceAllString(f, "")
		// Drop a "TAGS:" style prefix if the model labeled the list.
		if i := strings.Index(f, ":"); i >= 0 && i < len(f)-1 && strings.EqualFold(strings.TrimSpace(f[:i]), "tags") {
			f = f[i+1:]
		}
		f = strings.Trim(f, `"' `)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return normalizeTags(tokens)
}

// heuristicTags is the last-resort extraction: hashtag tokens plus
// capitalized words of three or more characters, lowercased.
func heuristicTags(raw string) []string {
	var tokens []string
	for _, m := range hashtagRe.FindAllStringSubmatch(raw, -1) {
		tokens = append(tokens, m[1])
	}
	tokens = append(tokens, capitalRe.FindAllString(raw, -1)...)
	return normalizeTags(tokens)
}

// normalizeTags lowercases, collapses inner whitespace to hyphens, strips
// leading hashes, drops tokens that are not plain tag material, and
// deduplicates preserving order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		t = strings.ToLower(strings.Join(strings.Fields(t), "-"))
		if !tagTokenRe.MatchString(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func capList(tags []string, max int) []string {
	if max > 0 && len(tags) > max {
		return tags[:max]
	}
	return tags
}

// wireProperties mirrors the JSON object the properties prompt requests.
type wireProperties struct {
	Tags    []string `json:"tags"`
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Date    string   `json:"date"`
	Source  string   `json:"source"`
	URL     string   `json:"url"`
	Aliases []string `json:"aliases"`
	Summary string   `json:"summary"`
}

// parseProperties extracts a property set from raw model output. Primary
// strategy is the requested JSON object; fields the model omitted stay
// empty. When no object parses, tags fall back to parseTags and a
// "KEY: value" line format is tried for the scalars.
func parseProperties(raw string, maxTags int) *models.Properties {
	p := &models.Properties{}

	if w := jsonObjectProperties(raw); w != nil {
		p.Tags = capList(normalizeTags(w.Tags), maxTags)
		p.Title = singleLine(w.Title)
		p.Author = singleLine(w.Author)
		p.Date = singleLine(w.Date)
		p.Source = singleLine(w.Source)
		p.URL = singleLine(w.URL)
		p.Aliases = trimAll(w.Aliases)
		p.Summary = singleLine(w.Summary)
	} else {
		lineProperties(raw, p)
	}

	if len(p.Tags) == 0 {
		p.Tags = parseTags(raw, maxTags)
	}
	return p
}

func jsonObjectProperties(raw string) *wireProperties {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}
	var w wireProperties
	if err := json.Unmarshal([]byte(raw[start:end+1]), &w); err != nil {
		return nil
	}
	return &w
}

// lineProperties parses "TITLE: ..." style labeled lines.
func lineProperties(raw string, p *models.Properties) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:i]))
		val := strings.TrimSpace(line[i+1:])
		if val == "" {
			continue
		}
		switch key {
		case "title":
			p.Title = val
		case "author":
			p.Author = val
		case "date":
			p.Date = val
		case "source":
			p.Source = val
		case "url":
			p.URL = val
		case "summary":
			p.Summary = val
		case "tags":
			p.Tags = delimitedTags(val)
		case "aliases":
			p.Aliases = trimAll(strings.Split(val, ","))
		}
	}
}

// singleLine collapses whitespace runs so scalar values render inline.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
