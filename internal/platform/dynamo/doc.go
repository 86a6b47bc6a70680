// Package dynamo provides a DynamoDB-backed idempotency ledger for
// deployments that keep the processed-event record outside PostgreSQL.
//
// The table uses event_key as partition key and consumer_group as sort key.
// Claims carry an expires_at attribute so that the table's TTL setting can
// expire them without a reaper; Purge exists for tables without TTL.
package dynamo
