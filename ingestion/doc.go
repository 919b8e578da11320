// Package ingestion drives a resumable transcript export.
//
// A Pipeline run moves through START, LISTING, FILTERING, PROCESSING and
// DONE. It lists transcript ids from a source, drops the ids the checkpoint
// already holds, then works through the rest in batches:
//   - each transcript is fetched, chunked by speaker turn and embedded
//   - the batch's records are appended to the export writer
//   - the batch's ids are added to the checkpoint and saved
//
// A transcript is only checkpointed after all of its records are written, so
// an interrupted run repeats at most the batch in flight. Per-transcript
// failures are logged with the stage that failed and never stop the run.
package ingestion
