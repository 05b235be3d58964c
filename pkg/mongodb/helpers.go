package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Now returns the current time in UTC truncated to Mongo's millisecond precision
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// BuildUpdateWithTimestamp builds a $set update document with updatedAt
func BuildUpdateWithTimestamp(set bson.M) bson.M {
	set["updatedAt"] = Now()
	return bson.M{"$set": set}
}

// SortAscending returns a sort document for a single field ascending
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// IsDuplicateKey reports a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// PartialIndexOn builds a partialFilterExpression for a single field value
func PartialIndexOn(field string, value interface{}) bson.M {
	return bson.M{field: value}
}
