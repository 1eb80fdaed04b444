package matchhub

// Initiates decides which side of a chosen pair materializes the session.
// Both members run this independently with their arguments swapped; the rule
// is invertible, so exactly one side ever initiates for a given pair: the
// earlier-queued entry wins, and on an exact QueuedAt tie the lexicographically
// smaller user ID wins. This substitutes for a central lock.
func Initiates(selfQueuedAt, peerQueuedAt int64, selfID, peerID string) bool {
	if selfQueuedAt != peerQueuedAt {
		return selfQueuedAt < peerQueuedAt
	}
	return selfID < peerID
}
