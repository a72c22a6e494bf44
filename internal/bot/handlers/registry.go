package handlers

import (
	"context"

	"github.com/edgard/zalobot/internal/zalo"
)

// Command prefixes recognized in group messages.
const (
	QueryPrefix = "/t"
	SavePrefix  = "/p"
)

// Command is a recognized group command with its prefix stripped.
type Command struct {
	Prefix  string
	Content string
	Event   zalo.Event
}

// GroupID returns the group the command was sent in.
func (c Command) GroupID() string { return c.Event.GroupID() }

// CommandFunc runs one command pipeline and reports how it ended.
type CommandFunc func(ctx context.Context, cmd Command) Outcome

// RegisteredHandler binds a command prefix to its pipeline.
type RegisteredHandler struct {
	Prefix      string
	Description string
	Handler     CommandFunc
}

// RegisterAllCommands initializes and returns the available group commands,
// in the order their prefixes are matched.
func RegisterAllCommands(deps HandlerDeps) []RegisteredHandler {
	return []RegisteredHandler{
		{
			Prefix:      QueryPrefix,
			Description: "answer a question over the group's saved data",
			Handler:     NewQueryHandler(deps),
		},
		{
			Prefix:      SavePrefix,
			Description: "analyze, save and export a message",
			Handler:     NewSaveHandler(deps),
		},
	}
}
