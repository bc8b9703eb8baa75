// Command entityq loads, counts and fetches entities of an OData service or a PostgreSQL table
// through an entitystore.Store.
//
// Usage:
//
//	entityq load --url http://host/Service.svc --set People --filter '[["age",">",18],"and",["name","startswith","A"]]' --sort -age --take 10
//	entityq count --engine postgres --table people --filter '["name","contains","ann"]'
//	entityq get 42 --url http://host/Service.svc --set People --expand Orders
//
// Every flag can also be given as an ENTITYQ_ prefixed environment variable or in a config file.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
