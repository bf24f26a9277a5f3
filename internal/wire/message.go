package wire

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-realm/internal/world"
)

// Kind tags a message on the wire so the decoder can rebuild the right
// variant.
type Kind string

const (
	KindLogin           Kind = "login"
	KindRegister        Kind = "register"
	KindCharacterCreate Kind = "character_create"
	KindCharacterRemove Kind = "character_remove"
	KindCharacterEnter  Kind = "character_enter"
	KindMove            Kind = "move"

	KindLoginSuccess       Kind = "login_success"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAlreadyLoggedIn    Kind = "already_logged_in"
	KindRegisterSuccess    Kind = "register_success"
	KindAlreadyExists      Kind = "already_exists"
	KindCreateSuccess      Kind = "create_success"
	KindRemoveSuccess      Kind = "remove_success"
	KindEnterSuccess       Kind = "enter_success"
	KindNotFound           Kind = "not_found"
	KindAlreadyInGame      Kind = "already_in_game"
	KindUnauthenticated    Kind = "unauthenticated"
	KindUnexpectedError    Kind = "unexpected_error"

	KindMapChanged Kind = "map_changed"
)

// Message is one protocol message of any kind.
type Message interface {
	Kind() Kind
}

/* Requests */

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (Login) Kind() Kind { return KindLogin }

type Register struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (Register) Kind() Kind { return KindRegister }

type CharacterCreate struct {
	Name  string    `json:"name"`
	Color world.RGB `json:"color"`
}

func (CharacterCreate) Kind() Kind { return KindCharacterCreate }

type CharacterRemove struct {
	CharacterID int64 `json:"character_id"`
}

func (CharacterRemove) Kind() Kind { return KindCharacterRemove }

type CharacterEnter struct {
	CharacterID int64 `json:"character_id"`
}

func (CharacterEnter) Kind() Kind { return KindCharacterEnter }

type Move struct {
	Direction world.Direction `json:"direction"`
	UseBudget bool            `json:"use_budget"`
}

func (Move) Kind() Kind { return KindMove }

/* Responses */

type LoginSuccess struct {
	Account world.AccountSnapshot `json:"account"`
}

func (LoginSuccess) Kind() Kind { return KindLoginSuccess }

type InvalidCredentials struct{}

func (InvalidCredentials) Kind() Kind { return KindInvalidCredentials }

type AlreadyLoggedIn struct{}

func (AlreadyLoggedIn) Kind() Kind { return KindAlreadyLoggedIn }

type RegisterSuccess struct{}

func (RegisterSuccess) Kind() Kind { return KindRegisterSuccess }

type AlreadyExists struct {
	Name string `json:"name,omitempty"`
}

func (AlreadyExists) Kind() Kind { return KindAlreadyExists }

type CreateSuccess struct {
	Account world.AccountSnapshot `json:"account"`
}

func (CreateSuccess) Kind() Kind { return KindCreateSuccess }

type RemoveSuccess struct {
	Account world.AccountSnapshot `json:"account"`
}

func (RemoveSuccess) Kind() Kind { return KindRemoveSuccess }

type EnterSuccess struct {
	Map       world.MapSnapshot       `json:"map"`
	Character world.CharacterSnapshot `json:"character"`
}

func (EnterSuccess) Kind() Kind { return KindEnterSuccess }

type NotFound struct{}

func (NotFound) Kind() Kind { return KindNotFound }

type AlreadyInGame struct{}

func (AlreadyInGame) Kind() Kind { return KindAlreadyInGame }

type Unauthenticated struct{}

func (Unauthenticated) Kind() Kind { return KindUnauthenticated }

type UnexpectedError struct {
	Message string `json:"message"`
}

func (UnexpectedError) Kind() Kind { return KindUnexpectedError }

/* Broadcasts */

type MapChanged struct {
	Map world.MapSnapshot `json:"map"`
}

func (MapChanged) Kind() Kind { return KindMapChanged }

// decoders maps every known kind to a constructor for its variant. The
// set is closed; decoding an unlisted kind fails.
var decoders = map[Kind]func() Message{
	KindLogin:              func() Message { return &Login{} },
	KindRegister:           func() Message { return &Register{} },
	KindCharacterCreate:    func() Message { return &CharacterCreate{} },
	KindCharacterRemove:    func() Message { return &CharacterRemove{} },
	KindCharacterEnter:     func() Message { return &CharacterEnter{} },
	KindMove:               func() Message { return &Move{} },
	KindLoginSuccess:       func() Message { return &LoginSuccess{} },
	KindInvalidCredentials: func() Message { return &InvalidCredentials{} },
	KindAlreadyLoggedIn:    func() Message { return &AlreadyLoggedIn{} },
	KindRegisterSuccess:    func() Message { return &RegisterSuccess{} },
	KindAlreadyExists:      func() Message { return &AlreadyExists{} },
	KindCreateSuccess:      func() Message { return &CreateSuccess{} },
	KindRemoveSuccess:      func() Message { return &RemoveSuccess{} },
	KindEnterSuccess:       func() Message { return &EnterSuccess{} },
	KindNotFound:           func() Message { return &NotFound{} },
	KindAlreadyInGame:      func() Message { return &AlreadyInGame{} },
	KindUnauthenticated:    func() Message { return &Unauthenticated{} },
	KindUnexpectedError:    func() Message { return &UnexpectedError{} },
	KindMapChanged:         func() Message { return &MapChanged{} },
}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal serializes a message to its tagged envelope payload.
func Marshal(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Kind: msg.Kind(), Data: data})
}

// Unmarshal rebuilds the concrete message variant from an envelope
// payload.
func Unmarshal(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshalling envelope: %w", err)
	}

	newMsg, ok := decoders[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind: %q", env.Kind)
	}

	msg := newMsg()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, msg); err != nil {
			return nil, fmt.Errorf("unmarshalling %s payload: %w", env.Kind, err)
		}
	}
	return msg, nil
}
