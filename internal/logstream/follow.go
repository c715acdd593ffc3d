package logstream

// DefaultFollowThreshold is the trailing-edge proximity, in rows, within
// which a manual scroll keeps the view following new entries. One row is
// about 16 px, so three rows is roughly 50 px.
const DefaultFollowThreshold = 3

// Follower tracks whether a log view should stick to the newest entry.
// Following is decided at each manual scroll and stays suspended until
// the consumer scrolls back near the bottom or calls Follow.
type Follower struct {
	threshold int
	following bool
}

// NewFollower returns a follower that starts out following.
func NewFollower(threshold int) Follower {
	if threshold <= 0 {
		threshold = DefaultFollowThreshold
	}
	return Follower{threshold: threshold, following: true}
}

// Scrolled records a manual scroll that left the view distance rows above
// the bottom.
func (f *Follower) Scrolled(distance int) {
	f.following = distance < f.threshold
}

// Follow re-enables following.
func (f *Follower) Follow() {
	f.following = true
}

// Following reports whether the view should track new entries.
func (f *Follower) Following() bool {
	return f.following
}
