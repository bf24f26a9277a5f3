package command

import (
	"github.com/pixil98/go-errors"
)

type Config struct {
	Listener ListenerConfig `json:"listener"`
	Storage  StorageConfig  `json:"storage"`
	Nats     NatsConfig     `json:"nats"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Listener.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())

	return el.Err()
}
