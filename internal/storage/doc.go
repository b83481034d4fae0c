// Package storage holds the external stores events are synchronized into.
//
// Every backend implements Store and keeps exactly one logical record per
// event unique id. The Airtable backend is the production target; DynamoDB
// and PostgreSQL serve self-hosted deployments, the file backend is a local
// development target and the dry-run backend only prints what would be
// written. No backend is ever read back as a cache by the crawl itself.
package storage
