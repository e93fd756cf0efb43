package session

import "fmt"

// Refresh-token records embed the user id in the key so that bulk
// invalidation reduces to a prefix scan.

func refreshTokenKey(userID, tokenID string) string {
	return fmt.Sprintf("session:refresh:%s:%s", userID, tokenID)
}

func refreshTokenPrefix(userID string) string {
	return fmt.Sprintf("session:refresh:%s:", userID)
}

// tokenIndexKey maps a bare token id back to its owner so validate does not
// need to scan the refresh namespace.
func tokenIndexKey(tokenID string) string {
	return fmt.Sprintf("session:token:%s", tokenID)
}

func blacklistKey(tokenID string) string {
	return fmt.Sprintf("session:blacklist:%s", tokenID)
}
