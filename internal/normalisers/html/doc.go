// Package html reads saved HTML articles and guideline pages. Publisher pages
// usually carry Highwire Press citation_* meta tags, which are exposed as
// embedded properties.
package html
