// Package odataengine provides an OData implementation of the entitystore provider contract.
//
// A Service talks to one OData service root over HTTP. Its entity sets render the Queryable operations
// as system query options ($filter, $orderby, $top, $skip, $expand, $select, $inlinecount or $count),
// decode the JSON payloads of both the verbose v2 and the v4 format, and track their entities in the
// Service's entity context. Saving the context sends POST, MERGE or PATCH, and DELETE requests.
//
// Usage:
//
//	service, err := odataengine.NewService("https://example.org/odata", odataengine.WithProtocolVersion(odataengine.V4))
//	if err != nil {
//		// handle error
//	}
//
//	people, err := service.EntitySet("People", "id")
//	if err != nil {
//		// handle error
//	}
//
//	store, err := entitystore.NewStore(people, entitystore.WithAutoCommit(true))
package odataengine
