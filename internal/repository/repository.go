package repository

import "codequest/internal/database"

// pick returns q when the caller is inside a transaction, otherwise the pool
func pick(db *database.DB, q database.DBTX) database.DBTX {
	if q == nil {
		return db
	}
	return q
}
