package auth

import (
	"errors"

	"github.com/ynotnauk/go-convex/entities"
)

var (
	ErrBlankNickname error = errors.New("nickname cannot be blank")
)

// StaticAuthProvider hands out a fixed identity. The password, when set, is
// used to identify with NickServ after registration.
type StaticAuthProvider struct {
	identity entities.Identity
}

func (a *StaticAuthProvider) GetIdentity() (*entities.Identity, error) {
	identity := a.identity
	return &identity, nil
}

func NewStaticProvider(nickname string, realname string, password string) (*StaticAuthProvider, error) {
	if nickname == "" {
		return nil, ErrBlankNickname
	}
	// Fall back to the nickname when no realname is given
	if realname == "" {
		realname = nickname
	}
	provider := &StaticAuthProvider{
		identity: entities.Identity{
			Nickname: nickname,
			Password: password,
			Realname: realname,
		},
	}
	return provider, nil
}
