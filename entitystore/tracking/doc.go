// Package tracking provides change tracking for entities materialized or created through an entitystore.EntitySet.
//
// Entities move through the states Detached, Unchanged, Added, Modified, and Deleted.
// A StateManager keeps the tracked entities, and SaveChanges hands them to a Persister
// in tracking order. Every saved entity is untracked afterward.
package tracking
