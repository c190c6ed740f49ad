// Package workers keeps the per-workspace roster of workers that the
// prediction service draws on when it sizes a project. Rosters are imported
// from CSV files with the columns Name, Role, Technologies and Experience,
// where the last two are colon separated lists.
package workers
