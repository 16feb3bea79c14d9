package dispatch

import (
	"strings"

	"github.com/ynotnauk/go-convex/entities"
)

// InputCommandIs accepts messages whose resolved input command is name.
func InputCommandIs(name string) entities.GuardFunc {
	name = strings.ToLower(name)
	return func(message *entities.IrcMessage) bool {
		return message.InputCommand == name
	}
}

// ArgsContain accepts messages whose argument text contains substr, ignoring
// case.
func ArgsContain(substr string) entities.GuardFunc {
	substr = strings.ToLower(substr)
	return func(message *entities.IrcMessage) bool {
		return strings.Contains(strings.ToLower(message.Args), substr)
	}
}

func All(guards ...entities.GuardFunc) entities.GuardFunc {
	return func(message *entities.IrcMessage) bool {
		for _, guard := range guards {
			if guard != nil && !guard(message) {
				return false
			}
		}
		return true
	}
}
