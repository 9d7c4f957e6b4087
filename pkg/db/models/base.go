package models

import "github.com/google/uuid"

// ensureID assigns a client-side primary key so inserts do not depend on a
// database uuid generator.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
