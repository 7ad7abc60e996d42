// Package shard maps partition keys onto physical partitions and formats
// session tokens for them.
package shard

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// For computes the physical partition for a partition key value.
// With numPartitions=1, every key goes to partition 0.
// With numPartitions>1, keys are distributed by hash of their decimal form.
func For(key string, numPartitions int) int {
	if numPartitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numPartitions))
}

// SessionToken formats a session token in the Cosmos DB shape
// "<partition>:-1#<lsn>".
func SessionToken(partition int, lsn uint64) string {
	return fmt.Sprintf("%d:-1#%d", partition, lsn)
}

// ParseSessionToken extracts the partition and LSN from a token produced by
// SessionToken.
func ParseSessionToken(token string) (partition int, lsn uint64, err error) {
	head, tail, ok := strings.Cut(token, "#")
	if !ok {
		return 0, 0, fmt.Errorf("session token %q: missing '#'", token)
	}
	rangeID, _, ok := strings.Cut(head, ":")
	if !ok {
		return 0, 0, fmt.Errorf("session token %q: missing ':'", token)
	}
	partition, err = strconv.Atoi(rangeID)
	if err != nil {
		return 0, 0, fmt.Errorf("session token %q: partition: %w", token, err)
	}
	lsn, err = strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("session token %q: lsn: %w", token, err)
	}
	return partition, lsn, nil
}
