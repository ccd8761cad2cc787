package pipeline

import (
	"strings"
	"time"
)

// upperStage uppercases a string message, stopping the chain for anything
// that isn't a string (simulating a stage that only accepts its own
// message type and drops everything else).
type upperStage struct{ timeout time.Time }

func (s *upperStage) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	str, ok := msg.(string)
	if !ok {
		return nil, nil
	}
	return []interface{}{strings.ToUpper(str)}, nil
}

func (s *upperStage) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	return []interface{}{msg}, nil
}

func (s *upperStage) HandleTimeout(now time.Time) {}

func (s *upperStage) PollTimeout(now time.Time) time.Time { return s.timeout }

func (s *upperStage) HandleEvent(event interface{}) {}

// suffixStage appends a fixed suffix to every string it sees.
type suffixStage struct{ suffix string }

func (s *suffixStage) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	str, ok := msg.(string)
	if !ok {
		return nil, nil
	}
	return []interface{}{str + s.suffix}, nil
}

func (s *suffixStage) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	return []interface{}{msg}, nil
}

func (s *suffixStage) HandleTimeout(now time.Time) {}

func (s *suffixStage) PollTimeout(now time.Time) time.Time { return time.Time{} }

func (s *suffixStage) HandleEvent(event interface{}) {}
