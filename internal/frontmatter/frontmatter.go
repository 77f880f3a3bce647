// Package frontmatter parses, merges, and serializes the YAML metadata
// block at the top of a Markdown document.
//
// The block is modeled as an ordered list of entries that keep their raw
// source lines. Rendering emits raw lines for untouched entries and
// canonical YAML only for entries the merge changed, so a document whose
// block was not modified round-trips byte-for-byte.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document is a Markdown file split into a frontmatter block and body.
// The body is never rewritten; only the block can change.
type Document struct {
	block    Block
	body     []byte
	raw      []byte
	hadBlock bool
}

// Block is an ordered set of frontmatter entries.
type Block struct {
	preamble []string
	entries  []*entry
	dirty    bool
}

type entry struct {
	key   string
	value any
	raw   []string // source lines; nil when synthesized or modified
}

// Parse splits data into frontmatter and body. A document without a
// leading delimited block, or with a block that is not valid YAML, is
// treated as all body with an empty synthesized block.
func Parse(data []byte) *Document {
	d := &Document{raw: data, body: data}

	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return d
	}
	rest := data[len(delim)+1:]
	var blockBytes, after []byte
	if bytes.HasPrefix(rest, []byte(delim)) {
		// Empty block: closing fence on the very next line.
		after = rest[len(delim):]
	} else {
		end := bytes.Index(rest, []byte("\n"+delim))
		if end < 0 {
			return d
		}
		blockBytes = rest[:end]
		after = rest[end+1+len(delim):]
	}
	switch {
	case len(after) == 0:
		// Closing fence at EOF.
	case after[0] == '\n':
		after = after[1:]
	default:
		// "---foo" is not a closing fence.
		return d
	}

	var parsed map[string]any
	if yaml.Unmarshal(blockBytes, &parsed) != nil {
		return d
	}

	d.hadBlock = true
	d.body = after
	d.block.parse(blockBytes)
	return d
}

// Body returns the document content below the frontmatter block, exactly
// as it appeared in the source.
func (d *Document) Body() []byte { return d.body }

// Block returns the document's frontmatter block.
func (d *Document) Block() *Block { return &d.block }

// Changed reports whether any merge modified the block.
func (d *Document) Changed() bool { return d.block.dirty }

// Bytes serializes the document. An unchanged document returns the
// original bytes untouched.
func (d *Document) Bytes() []byte {
	if !d.block.dirty {
		return d.raw
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	for _, line := range d.block.preamble {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	for _, e := range d.block.entries {
		if e.raw != nil {
			for _, line := range e.raw {
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
			continue
		}
		renderEntry(&buf, e)
	}
	buf.WriteString(delim + "\n")
	buf.Write(d.body)
	return buf.Bytes()
}

// parse splits the block into top-level entries. Lines before the first
// key (blanks, comments) are kept verbatim as preamble.
func (b *Block) parse(blockBytes []byte) {
	if len(blockBytes) == 0 {
		return
	}
	var cur *entry
	for _, line := range strings.Split(string(blockBytes), "\n") {
		if isKeyLine(line) {
			key := strings.TrimSpace(line[:strings.Index(line, ":")])
			cur = &entry{key: key, raw: []string{line}}
			b.entries = append(b.entries, cur)
			continue
		}
		if cur == nil {
			b.preamble = append(b.preamble, line)
			continue
		}
		cur.raw = append(cur.raw, line)
	}
	for _, e := range b.entries {
		var m map[string]any
		if yaml.Unmarshal([]byte(strings.Join(e.raw, "\n")), &m) == nil {
			e.value = m[e.key]
		}
	}
}

// isKeyLine reports whether line starts a top-level "key:" entry.
func isKeyLine(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '#', '-':
		return false
	}
	return strings.Index(line, ":") > 0
}

// Len returns the number of entries in the block.
func (b *Block) Len() int { return len(b.entries) }

// Has reports whether the block contains key.
func (b *Block) Has(key string) bool {
	return b.find(key) != nil
}

// Scalar returns the string value of key, or "" when absent or not a
// scalar string.
func (b *Block) Scalar(key string) string {
	e := b.find(key)
	if e == nil {
		return ""
	}
	s, _ := e.value.(string)
	return s
}

// StringList returns the value of key coerced to a string slice: a list
// yields its string items, a scalar string yields a one-element slice.
func (b *Block) StringList(key string) []string {
	e := b.find(key)
	if e == nil {
		return nil
	}
	switch v := e.value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	default:
		return nil
	}
}

// Set replaces (or appends) the entry for key and marks the block dirty.
// The entry loses its raw lines and is rendered canonically.
func (b *Block) Set(key string, value any) {
	b.dirty = true
	if e := b.find(key); e != nil {
		e.value = value
		e.raw = nil
		return
	}
	b.entries = append(b.entries, &entry{key: key, value: value})
}

func (b *Block) find(key string) *entry {
	for _, e := range b.entries {
		if e.key == key {
			return e
		}
	}
	return nil
}

func renderEntry(buf *bytes.Buffer, e *entry) {
	switch v := e.value.(type) {
	case []string:
		buf.WriteString(e.key + ":\n")
		for _, item := range v {
			buf.WriteString("  - " + renderScalar(item) + "\n")
		}
	case []any:
		buf.WriteString(e.key + ":\n")
		for _, item := range v {
			buf.WriteString("  - " + renderScalar(item) + "\n")
		}
	default:
		buf.WriteString(e.key + ": " + renderScalar(v) + "\n")
	}
}

// renderScalar delegates quoting decisions to the YAML encoder.
func renderScalar(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(string(out), "\n")
}
