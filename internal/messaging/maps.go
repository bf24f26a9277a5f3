package messaging

import (
	"fmt"
	"log/slog"

	"github.com/pixil98/go-realm/internal/wire"
	"github.com/pixil98/go-realm/internal/world"
)

// Broker is the pub/sub surface MapBroadcasts needs; NatsServer
// satisfies it.
type Broker interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

// MapBroadcasts fans map-changed updates out through the broker, one
// subject per map. Connections on a map subscribe to its subject; the
// broker preserves per-subject delivery order, so every occupant sees
// updates in publish order.
type MapBroadcasts struct {
	broker Broker
}

func NewMapBroadcasts(broker Broker) *MapBroadcasts {
	return &MapBroadcasts{broker: broker}
}

func mapSubject(mapID int64) string {
	return fmt.Sprintf("map.%d", mapID)
}

// MapChanged publishes a map snapshot to the map's occupants. It is the
// world state's broadcast sink.
func (b *MapBroadcasts) MapChanged(snapshot world.MapSnapshot) {
	payload, err := wire.Marshal(&wire.MapChanged{Map: snapshot})
	if err != nil {
		slog.Warn("encoding map update", "map", snapshot.ID, "error", err)
		return
	}
	if err := b.broker.Publish(mapSubject(snapshot.ID), payload); err != nil {
		slog.Warn("publishing map update", "map", snapshot.ID, "error", err)
	}
}

// SubscribeMap delivers every update for one map to deliver until the
// returned unsubscribe function runs.
func (b *MapBroadcasts) SubscribeMap(mapID int64, deliver func(msg wire.Message)) (func(), error) {
	return b.broker.Subscribe(mapSubject(mapID), func(data []byte) {
		msg, err := wire.Unmarshal(data)
		if err != nil {
			slog.Warn("decoding map update", "map", mapID, "error", err)
			return
		}
		deliver(msg)
	})
}
