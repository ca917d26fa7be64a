package redisclient

import "fmt"

// Namespace prefixes every key this module writes, isolating it from other
// tenants of the same Redis database.
const Namespace = "deepagent"

// ThreadKey returns the key holding the last stored result for a thread.
func ThreadKey(threadID string) string {
	return fmt.Sprintf("%s:threads:%s", Namespace, threadID)
}

// ThreadIndexKey is the set of known thread ids.
const ThreadIndexKey = Namespace + ":threads"
