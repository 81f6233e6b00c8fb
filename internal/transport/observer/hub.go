package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"citytraffic/internal/protocol"
	"citytraffic/internal/sim/scene"
)

const defaultSubscriberBuffer = 64

// Hub fans generated scenes out to observer subscriptions. A subscriber whose
// buffer is full when a scene is published is dropped.
type Hub struct {
	log    *zap.Logger
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64

	published atomic.Uint64
	dropped   atomic.Uint64
}

type subscription struct {
	id          uint64
	onlyWorthIt atomic.Bool
	out         chan []byte
	// gone is closed when the hub drops the subscriber.
	gone chan struct{}
}

func NewHub(log *zap.Logger, buffer int) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{log: log, buffer: buffer, subs: map[uint64]*subscription{}}
}

func (h *Hub) subscribe(onlyWorthIt bool) *subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &subscription{
		id:   h.nextID,
		out:  make(chan []byte, h.buffer),
		gone: make(chan struct{}),
	}
	sub.onlyWorthIt.Store(onlyWorthIt)
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *subscription) {
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.gone)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type HubStats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

func (h *Hub) Stats() HubStats {
	return HubStats{Subscribers: h.Subscribers(), Published: h.published.Load(), Dropped: h.dropped.Load()}
}

// Publish encodes s once and offers it to every matching subscriber without
// blocking.
func (h *Hub) Publish(s *scene.Scene) error {
	b, err := json.Marshal(SceneMessage(s))
	if err != nil {
		return err
	}
	h.published.Add(1)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.onlyWorthIt.Load() && !s.Decision.WorthIt {
			continue
		}
		select {
		case sub.out <- b:
		default:
			h.removeLocked(sub)
			h.dropped.Add(1)
			h.log.Info("observer dropped: slow consumer", zap.Uint64("subscriber", sub.id))
		}
	}
	return nil
}

// SceneMessage is the SCENE wire form of s.
func SceneMessage(s *scene.Scene) protocol.SceneMsg {
	msg := protocol.SceneMsg{
		Type:            protocol.TypeScene,
		ProtocolVersion: protocol.Version,
		SceneID:         s.ID,
		Seed:            s.Seed,
		WorthIt:         s.Decision.WorthIt,
		Reason:          s.Decision.Reason,
		EndFrame:        s.Decision.EndFrame,
		Frames:          append([]int{}, s.Decision.Frames...),
		Vehicles:        make([]protocol.SceneCar, 0, len(s.Vehicles)),
	}
	if s.Grid != nil {
		msg.Grid = [2]int{s.Grid.Width(), s.Grid.Height()}
	}
	for _, v := range s.Vehicles {
		car := protocol.SceneCar{
			ID:                v.ID,
			Model:             v.Model,
			FramesPerWaypoint: v.FramesPerWaypoint,
			Camera:            v.Camera,
		}
		for _, c := range v.Cells() {
			car.Path = append(car.Path, [2]int{c.X, c.Y})
		}
		msg.Vehicles = append(msg.Vehicles, car)
	}
	return msg
}
