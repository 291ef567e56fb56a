// Package source fetches raw posts from configured content collections.
//
// Each collection is read either from its RSS listing (parsed with gofeed,
// paragraph text extracted from the entry HTML with goquery) or by scraping
// the web listing page. Entries that cannot be parsed are skipped and counted;
// a transport or configuration failure fails the whole collection.
package source
