package update

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/checksum"
)

// Parse decodes raw Markdown bytes into a Record. The id is derived from
// path; origin tags which store the bytes came from. Records without a
// frontmatter block are rejected: unlike free-form notes, an update
// record is a contract and must carry its metadata.
func Parse(path string, origin Origin, data []byte) (*Record, error) {
	meta, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("update: parse %s: %w", path, err)
	}

	r := &Record{
		ID:       IDFromPath(path),
		Path:     path,
		Origin:   origin,
		Meta:     meta,
		Title:    deriveTitle(body),
		Body:     body,
		Sections: splitSections(body),
		Checksum: checksum.Sum(data),
	}
	return r, nil
}

// splitFrontmatter separates the YAML frontmatter (between leading ---
// delimiters) from the Markdown body.
func splitFrontmatter(data []byte) (Meta, string, error) {
	const delim = "---"
	var meta Meta

	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return meta, "", fmt.Errorf("missing frontmatter")
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return meta, "", fmt.Errorf("unterminated frontmatter")
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &meta); err != nil {
		return meta, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	return meta, body, nil
}

// splitSections maps each "## Heading" to the text below it, up to the
// next H2 heading.
func splitSections(body string) map[string]string {
	out := make(map[string]string)
	var current string
	var buf strings.Builder

	flush := func() {
		if current != "" {
			out[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			flush()
			current = strings.TrimSpace(trimmed[3:])
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return out
}

// deriveTitle returns the first H1 heading, or empty string.
func deriveTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Compose renders a record back to its canonical Markdown form:
// frontmatter, H1 title, then the four sections in canonical order.
func Compose(meta Meta, title string, sections map[string]string) ([]byte, error) {
	fm, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("update: marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, name := range SectionNames {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", name, strings.TrimSpace(sections[name]))
	}
	return b.Bytes(), nil
}
