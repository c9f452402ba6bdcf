package migrations

import _ "embed"

//go:embed 2026101602_create_quiz_answers.up.sql
var createQuizAnswersSQL string

func init() {
	Migrations.MustRegister(
		sqlMigration(createQuizAnswersSQL),
		sqlMigration(`DROP TABLE IF EXISTS quiz_answers`),
	)
}
