package source

import (
	"context"
	"fmt"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/utils"
)

// SliceSource replays a fixed price sequence. It is the offline item source used for
// backtests and by the synthetic and csv loaders.
type SliceSource struct {
	prices    []float64
	next      int
	selected  int
	committed bool
}

func NewSliceSource(prices []float64) *SliceSource {
	return &SliceSource{prices: utils.CopyFloats(prices), selected: -1}
}

func (s *SliceSource) NextPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.next >= len(s.prices) {
		return 0, fmt.Errorf("requested item %d of %d: %w", s.next, len(s.prices), common.ErrorStreamExhausted)
	}
	price := s.prices[s.next]
	s.next++
	return price, nil
}

// CommitSelection keeps the last fetched item. A second commit fails.
func (s *SliceSource) CommitSelection(ctx context.Context) error {
	if s.next == 0 {
		return fmt.Errorf("no item fetched yet: %w", common.ErrorInvalidValue)
	}
	if s.committed {
		return common.ErrorAlreadyCommitted
	}
	s.committed = true
	s.selected = s.next - 1
	return nil
}

// Selected returns the committed index and price.
func (s *SliceSource) Selected() (int, float64, bool) {
	if !s.committed {
		return -1, 0, false
	}
	return s.selected, s.prices[s.selected], true
}

func (s *SliceSource) Len() int {
	return len(s.prices)
}

func (s *SliceSource) Prices() []float64 {
	return utils.CopyFloats(s.prices)
}

// Fetched is the number of prices handed out so far.
func (s *SliceSource) Fetched() int {
	return s.next
}
