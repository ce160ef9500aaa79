// Package storage persists submitted videos behind a backend-neutral
// interface. Submissions carry an opaque handle; the local backend maps it to
// a file under the video directory and the s3 backend maps it to an object
// key, so the rest of the daemon never touches paths or buckets directly.
package storage
