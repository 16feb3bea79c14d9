package interfaces

import "github.com/ynotnauk/go-convex/entities"

type AuthProvider interface {
	GetIdentity() (*entities.Identity, error)
}
