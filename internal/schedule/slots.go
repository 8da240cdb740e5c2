package schedule

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"festpush/internal/campaign"
)

// Slots returns the send-time slots ("HH:mm", inclusive window bounds) for
// one campaign-day. The result is deterministic: the same
// (campaignID, date, from, to) always yields the same ordered slots, so the
// chosen times never need to be stored.
//
// count is silently capped at the window capacity; count <= 0 yields an
// empty result. The returned list never contains duplicates: the draw is a
// seeded Fisher-Yates shuffle of the window's minutes, and the first count
// entries are taken in shuffle order.
func Slots(campaignID, date, from, to string, count int) ([]string, error) {
	lo, err := campaign.ParseHHMM(from)
	if err != nil {
		return nil, err
	}
	hi, err := campaign.ParseHHMM(to)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("inverted window %s-%s", from, to)
	}
	if count <= 0 {
		return []string{}, nil
	}

	minutes := make([]int, hi-lo+1)
	for i := range minutes {
		minutes[i] = lo + i
	}

	// Per-position pseudo-random stream seeded from the slot identity. The
	// position index is appended to the seed string so each draw sees a
	// fresh hash without any shared generator state.
	seed := campaignID + date + from + to
	randAt := func(pos int) float64 {
		h := fnv.New32a()
		_, _ = h.Write([]byte(seed + strconv.Itoa(pos)))
		return float64(h.Sum32()) / (1 << 32)
	}

	for i := range minutes {
		j := int(randAt(i) * float64(i+1)) // in [0, i]
		minutes[i], minutes[j] = minutes[j], minutes[i]
	}

	if count > len(minutes) {
		count = len(minutes)
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = campaign.FormatHHMM(minutes[i])
	}
	return out, nil
}
