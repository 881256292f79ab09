// Package normalisers turns raw corpus articles into canonical documents.
// The markdown subpackage renders help centre HTML as markdown.
package normalisers
