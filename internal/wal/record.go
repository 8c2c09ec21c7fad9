package wal

import "time"

// Op distinguishes the two operations the WAL can hold.
type Op int

const (
	OpSet Op = iota
	OpDelete
)

func (o Op) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "set"
}

// Record is one WAL entry: (timestamp, operation, key, optional value,
// optional TTL).
type Record struct {
	Timestamp time.Time     `json:"ts"`
	Op        Op            `json:"op"`
	Key       string        `json:"key"`
	Value     []byte        `json:"value,omitempty"`
	TTL       time.Duration `json:"ttl,omitempty"`
}
