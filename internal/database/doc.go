// Package database keeps the job history of the transcode service in SQLite.
//
// Each submitted job is one row in the jobs table. A job moves from queued
// to running and then to exactly one of succeeded, failed or cancelled;
// updates that would leave a terminal state are rejected with
// ErrInvalidTransition. The pipeline core does not use this package; only
// the job manager does.
//
// The database runs in WAL mode with a busy timeout, and every query is
// recorded in the video_rewrite_db_* metrics.
package database
