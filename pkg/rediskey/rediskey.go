package rediskey

import "fmt"

// Key prefixes shared by every ticketsync process using the same redis.
const (
	AppPrefix  = "ticketsync"
	SyncPrefix = "ticketsync:sync"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSyncLockKey returns "ticketsync:sync:lock:{name}".
func BuildSyncLockKey(name string) string {
	return NamespaceKey(SyncPrefix, NamespaceKey("lock", name))
}
