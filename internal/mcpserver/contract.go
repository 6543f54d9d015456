package mcpserver

// UpdateFormatContract describes the canonical update record format that
// agent consumers should follow when publishing updates.
const UpdateFormatContract = `# Raido Update Record Format Contract

Every update record stored in Raido MUST follow this structure.

## Structure

` + "```" + `markdown
---
createdBy: orchestrator            # REQUIRED – author identity (agent or person)
date: 2026-01-15                   # REQUIRED – ISO date (YYYY-MM-DD)
priority: normal                   # REQUIRED – low | normal | high | urgent
type: schema                       # OPTIONAL – free-form category (schema, config, process, ...)
scope: implementation              # OPTIONAL – planning | implementation | mixed
affinity: electron-projects        # REGISTRY ONLY – name of a targeting rule
---

# Human-readable title

## What to do

Concrete instructions for the consuming agent.

## Files affected

- path/to/file.go
- docs/some-registry.json

## Why

Rationale for the change.

## Verification

How to confirm the change landed.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `createdBy` + "`" + `, ` + "`" + `date` + "`" + `, and ` + "`" + `priority` + "`" + ` are required.**
3. **All four sections are required**, in this order: What to do,
   Files affected, Why, Verification.
4. **Files affected** is a bullet list of repository-relative paths.
   Backtick-quoted paths are accepted. When ` + "`" + `scope` + "`" + ` is omitted it is
   inferred from these paths: documentation and planning paths mean
   planning scope, source paths mean implementation, a mix means mixed.
5. **File names** follow ` + "`" + `YYYY-MM-DD-slug.md` + "`" + `; the id is the file name
   without the extension. The slug is lowercase kebab-case derived from
   the title.
6. **` + "`" + `affinity` + "`" + `** appears only on shared registry records and names a rule
   in the registry's targeting rules file. Records with no matching rule
   are never delivered.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
createdBy: planner-agent
date: 2026-02-01
priority: high
type: config
---

# Move config to YAML

## What to do

Replace the JSON config loader with a YAML one.

## Files affected

- internal/config.go
- config.example.yaml

## Why

All sibling services already use YAML.

## Verification

Service boots with the example config.
` + "```" + `
`
