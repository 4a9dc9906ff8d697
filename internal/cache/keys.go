package cache

import "fmt"

// SystemStatusKey caches the most recent system status snapshot.
const SystemStatusKey = "system:status"

// ContactRateKey is the rate-limit counter for one client identity.
func ContactRateKey(identity string) string {
	return fmt.Sprintf("rate:contact:%s", identity)
}

// AnalyticsKey holds the aggregated event counts for one UTC calendar date
// (ISO date string, e.g. "2024-01-01").
func AnalyticsKey(date string) string {
	return fmt.Sprintf("analytics:%s", date)
}

// GitHubUserKey caches the GitHub profile for a username.
func GitHubUserKey(username string) string {
	return fmt.Sprintf("github:user:%s", username)
}

// GitHubReposKey caches the repository list for a username.
func GitHubReposKey(username string) string {
	return fmt.Sprintf("github:repos:%s", username)
}
