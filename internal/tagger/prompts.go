package tagger

import "fmt"

const tagPromptTmpl = `Suggest up to %d topic tags for the note below.
Tags must be short, lowercase terms (use "-" instead of spaces).
Respond with ONLY a JSON array of strings, e.g. ["kubernetes", "devops"].

Note:
%s`

const propsPromptTmpl = `Extract metadata from the note below.
Respond with ONLY a JSON object using these keys:
  "tags"    - array of up to %d short lowercase topic tags (required)
  "title"   - document title
  "author"  - author name
  "date"    - creation or publication date (YYYY-MM-DD)
  "source"  - where the content came from
  "url"     - canonical URL
  "aliases" - array of alternative names for the note
  "summary" - one-sentence summary, max 200 characters
Omit any key you cannot determine from the note itself.

Note:
%s`

// checkPrompt is a minimal request used to verify reachability and auth
// without touching any document.
const checkPrompt = `Reply with the single word: pong`

func tagPrompt(count int, text string) string {
	return fmt.Sprintf(tagPromptTmpl, count, text)
}

func propsPrompt(count int, text string) string {
	return fmt.Sprintf(propsPromptTmpl, count, text)
}
