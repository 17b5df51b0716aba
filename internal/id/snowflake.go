// Package id generates unique, time-ordered 64-bit identifiers using a
// snowflake layout: 41 bits of milliseconds since a fixed epoch, 10 bits of
// node id, 12 bits of per-millisecond sequence.
package id

import (
	"errors"
	"sync"
	"time"
)

const (
	// epoch is 2024-01-01T00:00:00Z in Unix milliseconds. IDs sort by
	// generation time as long as every node's clock is sane.
	epoch int64 = 1704067200000

	nodeIDBits   uint8 = 10
	sequenceBits uint8 = 12

	maxNodeID   int64 = -1 ^ (-1 << nodeIDBits)
	maxSequence int64 = -1 ^ (-1 << sequenceBits)

	timeShift = nodeIDBits + sequenceBits
	nodeShift = sequenceBits
)

var ErrInvalidNodeID = errors.New("node id must be between 0 and 1023")

// Generator produces snowflake IDs. Safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	nodeID    int64
	sequence  int64
	timestamp int64
}

// NewGenerator creates a generator for the given node id. Each running
// instance must use a distinct node id to keep IDs globally unique.
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{nodeID: nodeID}, nil
}

// Next returns a new ID. IDs from one generator are strictly increasing.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.timestamp {
		// Clock went backwards; reuse the last timestamp and burn sequence
		// numbers until real time catches up.
		now = g.timestamp
	}

	if now == g.timestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.timestamp = now

	return ((now - epoch) << timeShift) |
		(g.nodeID << nodeShift) |
		g.sequence
}
