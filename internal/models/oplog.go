package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OperationLog is one audited HTTP request, written by the operation-log
// middleware off the request path.
type OperationLog struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ActionTime time.Time     `bson:"actionTime" json:"actionTime"`
	Operator   string        `bson:"operator" json:"operator"`
	IP         string        `bson:"ip" json:"ip"`
	Path       string        `bson:"path" json:"path"`
	Method     string        `bson:"method" json:"method"`
	LatencyMS  int64         `bson:"latencyMs" json:"latencyMs"`
	StatusCode int           `bson:"statusCode" json:"statusCode"`
}
