// Package helpcenter fetches the article corpus from a Zendesk-style help
// centre API.
//
// The articles endpoint is paginated; the connector follows next_page until
// it is null. Any failed page fails the whole fetch, so a partial corpus is
// never handed to reconciliation.
package helpcenter
