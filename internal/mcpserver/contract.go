package mcpserver

// EntryFormatContract describes the entry file format and the link field
// that LLM consumers should follow when creating entries.
const EntryFormatContract = `# pimstore Entry Format Contract

Every entry is a UTF-8 Markdown file with an optional YAML header. The entry
ID is its path relative to the store root without the ` + "`" + `.md` + "`" + ` extension.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – falls back to the first heading
pim:
  links:                            # OPTIONAL – managed by the link tools
    - notes/other                   # plain link
    - link: calendar/abc123         # annotated link
      annotation: weekly sync
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Links are bidirectional.** When A links to B, B also links to A. Use
   ` + "`" + `add_link` + "`" + ` and ` + "`" + `remove_link` + "`" + ` rather than editing ` + "`" + `pim.links` + "`" + ` by hand.
2. **Links declared on creation** are established for you, and every target
   must already exist.
3. **Link targets** are entry IDs: forward slashes, no ` + "`" + `.md` + "`" + `, no leading
   ` + "`" + `/` + "`" + `, never escaping the store with ` + "`" + `..` + "`" + `.
4. **An annotated link** is a table with exactly the keys ` + "`" + `link` + "`" + ` and
   ` + "`" + `annotation` + "`" + `. Any other shape is rejected.
5. **An entry cannot link to itself.**
6. Run ` + "`" + `check_links` + "`" + ` to verify that every link resolves and is mirrored.
`
