package repository

import "database/sql"

// nullString は空文字列をNULLとして書き込むための変換。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
