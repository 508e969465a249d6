package common

import (
	"math/rand"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

// UUIDint64 returns a cluster-unique int64 identifier.
func UUIDint64() int64 {
	idNodeOnce.Do(func() {
		node, err := snowflake.NewNode(rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(1024))
		if err != nil {
			// node id out of range is the only failure mode; 0 is always valid
			node, _ = snowflake.NewNode(0)
		}
		idNode = node
	})
	return idNode.Generate().Int64()
}
