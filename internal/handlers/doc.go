// Package handlers implements the HTTP API of the transcode service.
//
// Routes (registered in main):
//
//	POST   /api/jobs              submit a job
//	GET    /api/jobs              list jobs, newest first (?status=&limit=&offset=)
//	GET    /api/jobs/{id}         one job
//	DELETE /api/jobs/{id}         cancel a queued or running job
//	GET    /api/jobs/{id}/output  download the output of a succeeded job
//	GET    /api/jobs/{id}/watch   NDJSON job snapshots until the job ends
//	GET    /api/filters           available filter variants
//	GET    /api/inspect?path=     container summary of a file in the output directory
//	GET    /healthz, /livez, /readyz, /version
//
// When an API password is configured, /api routes need it as a bearer token
// or basic auth password.
//
// Errors are JSON objects of the form {"error": "..."}.
package handlers
