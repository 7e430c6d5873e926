// Package report renders crawl summaries, session history and query
// results.
//
// Three writers share the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown with a Mermaid chart of the item mix
//
// Writers only format. They never read the store or the configuration.
package report
