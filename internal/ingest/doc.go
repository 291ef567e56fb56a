// Package ingest turns raw source posts into stored pipeline items.
//
// Fingerprint and Fingerprinter are pure: they normalize the raw text and
// derive the content digest that keys an item. Run walks the configured
// collections one at a time, filters blocked content, and inserts each new
// item exactly once; a fingerprint already in the store is counted as a
// duplicate and left untouched.
package ingest
