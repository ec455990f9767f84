package data

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// objectIDs parses hex ids. A malformed id cannot name any stored document,
// so it is reported as chat.ErrNotFound.
func objectIDs(hex ...string) ([]bson.ObjectID, error) {
	out := make([]bson.ObjectID, len(hex))
	for i, h := range hex {
		id, err := bson.ObjectIDFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed id %q", chat.ErrNotFound, h)
		}
		out[i] = id
	}
	return out, nil
}
