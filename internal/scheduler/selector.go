package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"festpush/internal/campaign"
)

// MessageSelector picks the text for a pool slot, uniformly at random.
// Selection is independent of slot placement on purpose: slot times replay
// deterministically, message choice does not have to.
type MessageSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMessageSelector() *MessageSelector {
	return &MessageSelector{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewMessageSelectorSeeded is for tests that need a reproducible pick.
func NewMessageSelectorSeeded(seed int64) *MessageSelector {
	return &MessageSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *MessageSelector) Pick(msgs []campaign.Message) (campaign.Message, bool) {
	if len(msgs) == 0 {
		return campaign.Message{}, false
	}
	s.mu.Lock()
	i := s.rng.Intn(len(msgs))
	s.mu.Unlock()
	return msgs[i], true
}
