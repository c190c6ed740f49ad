// Package activity records what happened in a workspace and tells people
// about it.
//
// Domain services hand an Event to a Publisher after their write commits.
// The Publisher delivers it to every configured Sink in its own goroutine:
//
//   - LogSink appends a row to the activity feed
//   - NotificationSink stores a notification for each other workspace member
//     and publishes it on the workspace's Redis channel
//   - WebhookSink POSTs an HMAC-signed copy to an external endpoint
//
// Delivery is at most once. A failed sink is counted and logged; it never
// reaches the caller and never undoes the write that produced the event.
//
// Service reads the feed back: project activity with pinning, and per-user
// notifications with read tracking.
package activity
