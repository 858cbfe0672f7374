/*
Package ingest runs one uploaded image through admission, verification,
rendition generation and manifest persistence.

An attempt moves through these states:

	Admitted -> Verified -> Transcoding -> RenditionsGenerated -> Persisted

and ends in Aborted on any failure. Admission covers the quota check and the
cheap structural checks (file present, size ceiling, declared type). Nothing
is written before Transcoding.

Once the first file is written, the attempt owns every path it records. A
failure from that point on, including a canceled request context, removes all
of them in reverse order before the error is returned. Inserting the manifest
is the only commit point; after it the files belong to the asset.

Failures are reported as *Error with a Kind and a stable Reason. UserMessage
returns a short fixed text that never includes internal detail.
*/
package ingest
