//go:build integration

// Package testdb connects integration tests to a real PostgreSQL database.
//
// Tests call Open to get a migrated *sql.DB and WithTx to run against a
// transaction that is always rolled back, so tests never see each other's
// rows. When no database URL is configured the calling test is skipped:
//
//	func TestClaimDue(t *testing.T) {
//	    db := testdb.Open(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        reminders := postgres.NewPostgresReminderStore(tx, nil)
//	        ...
//	    })
//	}
//
// Run with:
//
//	TASKPULSE_TEST_DATABASE_URL=postgres://... go test -tags=integration ./...
package testdb
