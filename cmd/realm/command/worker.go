package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-realm/internal/handlers"
	"github.com/pixil98/go-realm/internal/messaging"
	"github.com/pixil98/go-realm/internal/reactor"
	"github.com/pixil98/go-realm/internal/session"
	"github.com/pixil98/go-realm/internal/world"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Create the message broker
	natsServer, err := cfg.Nats.BuildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	broadcasts := messaging.NewMapBroadcasts(natsServer)

	// Create the persistent store and the authoritative world
	store, err := cfg.Storage.BuildGameStore()
	if err != nil {
		return nil, fmt.Errorf("creating game store: %w", err)
	}

	maps, err := store.LoadAllMaps(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading maps: %w", err)
	}
	worldState, err := world.NewState(maps, broadcasts)
	if err != nil {
		return nil, fmt.Errorf("creating world state: %w", err)
	}

	// Wire the request handlers into the reactor
	r := cfg.Listener.BuildReactor()
	h := handlers.NewHandlers(store, worldState, session.NewRegistry(), r, broadcasts)
	h.Register(r)

	return service.WorkerList{
		"nats":    natsServer,
		"reactor": &gatedReactor{broker: natsServer, reactor: r},
	}, nil
}

// gatedReactor holds the reactor back until the broker can serve
// subscriptions, so a connection accepted at startup cannot race the
// nats client coming up.
type gatedReactor struct {
	broker  *messaging.NatsServer
	reactor *reactor.Reactor
}

func (g *gatedReactor) Start(ctx context.Context) error {
	if err := g.broker.WaitReady(ctx); err != nil {
		// Shut down before the broker came up.
		return nil
	}
	return g.reactor.Start(ctx)
}
