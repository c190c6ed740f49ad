// Package workspaces owns the tenant boundary: workspaces, their membership
// ledger and the users' current-workspace pointer.
//
// Every write that touches more than one row runs in a single transaction.
// Create inserts the workspace, the creator's OWNER membership and the
// pointer update together. Delete removes tasks, sprints, projects, members
// and the workspace itself, then repoints every user who was looking at it.
//
// The current-workspace pointer is written only here. repointUsers is the one
// place that decides where a user lands when their workspace disappears: the
// workspace of their earliest remaining membership, or nothing.
package workspaces
