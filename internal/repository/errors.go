package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// IsUniqueViolation はerrが一意制約違反であればtrueを返す。
func IsUniqueViolation(err error) bool {
	return hasPQCode(err, pqUniqueViolation)
}

// IsCheckViolation はerrがCHECK制約違反であればtrueを返す。
func IsCheckViolation(err error) bool {
	return hasPQCode(err, pqCheckViolation)
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
