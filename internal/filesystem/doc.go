/*
Package filesystem wraps the file operations used around transcoded output
with retry logic for NFS stale file handle errors (ESTALE), and provides the
temp-file-and-rename helpers that keep a destination from ever holding a
partially written container.

# Retry Behavior

Only ESTALE triggers retries; every other error is returned immediately.
Defaults: 3 retries, 50ms initial backoff doubling up to 500ms.

	info, err := filesystem.StatWithRetry(source, filesystem.DefaultRetryConfig())

# Output Commit

	if err := filesystem.ClearDestination(dest); err != nil { ... }
	temp, err := filesystem.CreateTempSibling(dest)
	// write temp
	err = filesystem.Commit(temp, dest)

Retry metrics are reported through the Observer set with SetObserver.
*/
package filesystem
