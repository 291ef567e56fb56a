// Command clipmill turns text posts into short subtitled videos.
//
// `clipmill run` performs one pipeline pass: ingest new posts, narrate them,
// transcribe the narration, compose segmented videos, and publish. Each stage
// can be switched off from the command line, and --quick caps every stage for
// fast iteration. The remaining commands inspect and maintain the item store.
package main
