// Package heartbeat prints a periodic liveness line and every diagnostic
// event on the console.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/types"
)

var topicMood = bus.T("mood", "#")

type Service struct {
	Interval time.Duration

	events atomic.Uint32
	beats  uint32
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(topicMood)
	defer conn.Unsubscribe(sub)

	iv := s.Interval
	if iv <= 0 {
		iv = 5 * time.Second
	}
	tick := time.NewTicker(iv)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[hb] stopping")
			return
		case <-tick.C:
			s.beats++
			println("[hb] alive", s.beats, "events", s.events.Load())
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.events.Add(1)
			Print(msg)
		}
	}
}

// Events counts the messages printed so far.
func (s *Service) Events() uint32 { return s.events.Load() }

// Start runs the monitor until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

// Print writes one event line without fmt.
func Print(msg *bus.Message) {
	switch ev := msg.Payload.(type) {
	case types.ColorEvent:
		println("[mon] color", string(ev.Source), int(ev.Duty[0]), int(ev.Duty[1]), int(ev.Duty[2]))
	case types.ModeEvent:
		if ev.User {
			println("[mon] mode user")
		} else {
			println("[mon] mode random")
		}
	case types.StoreEvent:
		if ev.Err != "" {
			println("[mon] store", string(ev.Op), "failed:", ev.Err)
			return
		}
		println("[mon] store", string(ev.Op), int(ev.Duty[0]), int(ev.Duty[1]), int(ev.Duty[2]))
	case types.AckEvent:
		println("[mon] ack", string(ev.Kind), ev.Blinks)
	case types.FaultEvent:
		println("[mon] fault", ev.Code, ev.Op)
	default:
		print("[mon] ")
		for i := 0; i < msg.Topic.Len(); i++ {
			if i > 0 {
				print("/")
			}
			if s, ok := msg.Topic.At(i).(string); ok {
				print(s)
			} else {
				print("?")
			}
		}
		println()
	}
}
