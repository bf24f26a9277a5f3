package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-realm/internal/storage"
	"github.com/pixil98/go-realm/internal/world"
)

type StorageConfig struct {
	Users      AssetConfig[*world.User]      `json:"users"`
	Characters AssetConfig[*world.Character] `json:"characters"`
	Maps       AssetConfig[*world.Map]       `json:"maps"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	el.Add(c.Users.Validate("users"))
	el.Add(c.Characters.Validate("characters"))
	el.Add(c.Maps.Validate("maps"))

	return el.Err()
}

func (c *StorageConfig) BuildGameStore() (*storage.GameStore, error) {
	users, err := c.Users.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating user store: %w", err)
	}
	chars, err := c.Characters.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating character store: %w", err)
	}
	maps, err := c.Maps.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating map store: %w", err)
	}

	return storage.NewGameStore(users, chars, maps)
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
