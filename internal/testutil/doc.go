// Package testutil provides shared test helpers and fixtures for the
// security bot.
//
// Philosophy:
// - Prefer real SQLite (no mocks) for correctness.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Most packages should start with:
//
//	database := testutil.NewTestDB(t)
//	svc := enforce.NewService(database, testutil.TestLogger(t))
package testutil
