// Package workflow sequences one pipeline run.
//
// The Sequencer runs ingestion and then the audio, subtitle, video, and
// publish stages in that fixed order, each behind its own switch in RunConfig.
// Every stage is a stageexec run over a fresh snapshot of the store, so an
// item moves at most one stage further per stage run and a later run resumes
// wherever the readiness flags left off. Nothing is retried inside a run.
//
// Only one run may hold the store at a time; the Sequencer takes a file lock
// next to the database for the duration of Run.
package workflow
