package engine

// pushLatest offers snap to a 1-buffered snapshot channel without ever
// blocking: when the buffer still holds an unread snapshot, that stale one
// is dropped in favor of the new one. Snapshots are cumulative, so a
// consumer that only observes the newest snapshot loses nothing. Must only
// be called from the single producing goroutine of the channel.
func pushLatest(out chan GenerationSnapshot, snap GenerationSnapshot) {
	select {
	case out <- snap:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- snap:
		default:
		}
	}
}
