package interfaces

import "context"

// Connector is the line transport a session runs on.
type Connector interface {
	Address() string
	Connect(ctx context.Context) error
	Dispose() error
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
}
