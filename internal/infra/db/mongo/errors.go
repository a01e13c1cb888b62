package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const codeWriteConflict = 112

// isWriteConflict reports errors raised when two transactions touched the same document.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError") {
			return true
		}
	}
	return false
}
