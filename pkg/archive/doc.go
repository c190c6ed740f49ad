// Package archive implements the retention jobs run by taskhub-janitor.
//
// Activities older than the retention window are exported to object storage
// as newline-delimited JSON, one object per batch under
// activities/<yyyy>/<mm>/<dd>/<batch>.jsonl, and removed from the database
// only once their batch has been uploaded. Read notifications older than
// their retention window are deleted outright.
package archive
