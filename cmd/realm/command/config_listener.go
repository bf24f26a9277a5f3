package command

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-realm/internal/reactor"
)

type ListenerConfig struct {
	Host string `json:"host,omitempty"`
	Port uint16 `json:"port"`
}

func (c *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if c.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}

	return el.Err()
}

func (c *ListenerConfig) BuildReactor() *reactor.Reactor {
	return reactor.NewReactor(net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port))))
}
