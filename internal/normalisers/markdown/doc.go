// Package markdown canonicalises help centre articles: it derives a stable
// key from the article id, renders the HTML body as markdown and prefixes
// the title as a level-one heading.
package markdown
