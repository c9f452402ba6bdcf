package migrations

import _ "embed"

//go:embed 2026101603_create_discussion.up.sql
var createDiscussionSQL string

func init() {
	Migrations.MustRegister(
		sqlMigration(createDiscussionSQL),
		sqlMigration(`DROP TABLE IF EXISTS discussion_comments; DROP TABLE IF EXISTS feedback`),
	)
}
