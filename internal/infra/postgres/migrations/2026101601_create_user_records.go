package migrations

import (
	_ "embed"
)

//go:embed 0001_create_user_records.sql
var createUserRecordsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createUserRecordsSQL),
		execSQL(`DROP TABLE IF EXISTS user_records`),
	)
}
