// Package fakes provides an in-memory, call-recording entitystore.EntitySet for testing
// the query builder and store adapter without a remote provider.
package fakes
