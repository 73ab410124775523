package domain

import "time"

// ScanEvent is an audit entry for one committed transition.
type ScanEvent struct {
	ID        string       `bson:"_id"`
	Reference string       `bson:"reference"`
	Serial    string       `bson:"serial"`
	From      RecordStatus `bson:"from,omitempty"`
	To        RecordStatus `bson:"to"`
	Action    ScanAction   `bson:"action"`
	Actor     string       `bson:"actor,omitempty"`
	Client    string       `bson:"client,omitempty"`
	Timestamp time.Time    `bson:"timestamp"`
}
