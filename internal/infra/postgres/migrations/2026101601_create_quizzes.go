package migrations

import _ "embed"

//go:embed 2026101601_create_quizzes.up.sql
var createQuizzesSQL string

func init() {
	Migrations.MustRegister(
		sqlMigration(createQuizzesSQL),
		sqlMigration(`DROP TABLE IF EXISTS questions; DROP TABLE IF EXISTS quizzes; DROP TABLE IF EXISTS users`),
	)
}
