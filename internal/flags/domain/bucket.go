package domain

import "github.com/cespare/xxhash/v2"

// BucketCount is the number of rollout buckets; bucket values fall in [0, BucketCount).
const BucketCount = 100

// Bucket maps a subject and flag to a stable bucket in [0, 100).
// xxhash is unseeded, so the result is identical across restarts and instances.
func Bucket(subjectID, flagName string) int {
	return int(xxhash.Sum64String(subjectID+flagName) % BucketCount)
}

// InRollout reports whether the subject falls inside a percentage rollout.
// Raising the percentage never removes a subject that was already inside.
func InRollout(subjectID, flagName string, percentage int) bool {
	return Bucket(subjectID, flagName) < percentage
}
