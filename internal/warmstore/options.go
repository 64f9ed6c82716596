package warmstore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optsSortByTimestamp() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
}
