// Package commands describes slash commands kept in the registry.
package commands

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command handler with its menu metadata.
// AdminOnly commands are dispatched only to configured admins and never
// appear in the public command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases are plain words (e.g. "корзина") that reach the command as text.
	Aliases []string
}

// Listed reports whether the command belongs in the public menu.
func (c Command) Listed() bool {
	return !c.Hidden && !c.AdminOnly
}

// Validate checks that c can be registered under name.
func (c Command) Validate(name string) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("command %q: name must start with a slash", name)
	case c.Handler == nil:
		return fmt.Errorf("command %q: nil handler", name)
	case strings.TrimSpace(c.Description) == "":
		return fmt.Errorf("command %q: empty description", name)
	}
	for _, a := range c.Aliases {
		if Key(a) == "" {
			return fmt.Errorf("command %q: %w", name, errEmptyAlias)
		}
	}
	return nil
}

var errEmptyAlias = errors.New("empty alias")

// Key normalizes user text or an alias for lookup: trimmed, lower case,
// without the leading slash or a trailing @botname.
func Key(text string) string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	text, _, _ = strings.Cut(text, "@")
	return strings.ToLower(text)
}
