package mcpserver

// NoteFormatContract describes how notes are named and stored, for LLM
// consumers creating or editing notes.
const NoteFormatContract = `# Ansuz Note Format Contract

Notes live in vaults. A vault is a flat directory of Markdown files plus a
search index; there are no sub-folders.

## Identity

- Every note has an **id**. The file on disk is ` + "`" + `<id>.md` + "`" + `.
- The id is the title with every character outside ` + "`" + `A-Z a-z 0-9 _ -` + "`" + ` removed.
  "Meeting Notes (Q3)" becomes ` + "`" + `MeetingNotesQ3` + "`" + `.
- A note created without a title takes its id from the first three words of
  its content joined with "-": "Hello world example ..." becomes
  ` + "`" + `Hello-world-example` + "`" + `.
- Ids are unique per vault. Creating a note whose id is taken fails.

## Content

- Content is Markdown. Runs of whitespace (including newlines) are collapsed to
  a single space on save, so do not rely on line structure.
- Empty content is rejected.
- Use [[wikilinks]] to reference other notes by title or id.
  [[target|alias]] links to target.

## Example

` + "```" + `markdown
Weekly standup. Action items: [[alice]] reviews the [[design-doc]],
Bob updates [[project-x|the roadmap]].
` + "```" + `

Created with title "Weekly Standup", this note is stored as
` + "`" + `WeeklyStandup.md` + "`" + ` and links to ` + "`" + `alice` + "`" + `, ` + "`" + `design-doc` + "`" + ` and ` + "`" + `project-x` + "`" + `.
`
