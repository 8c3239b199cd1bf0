package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/core/telegram/commands"
)

const wireComponent = "tg.wire"

var errNilRegistry = errors.New("telegram: nil registry")

// Registry maps slash commands, their text aliases and callback uniques to
// handlers. Registration happens at startup; lookups are safe afterwards from
// any goroutine.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string // alias key -> command name
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty Registry whose unknown-callback fallback
// answers with a short toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Действие недоступно"})
			return nil
		},
	}
}

// RegisterCommand adds cmd under name. Invalid definitions, duplicates and
// aliases already taken by another command are rejected.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if r == nil {
		return errNilRegistry
	}
	if err := cmd.Validate(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	keys := make([]string, 0, len(cmd.Aliases))
	for _, alias := range cmd.Aliases {
		key := commands.Key(alias)
		if owner, taken := r.aliases[key]; taken {
			return fmt.Errorf("command %q: alias %q already used by %s", name, alias, owner)
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.aliases[key] = name
	}
	r.commands[name] = cmd

	logger.Debug(context.Background(), wireComponent, "register.command",
		slog.String("status", "ok"),
		slog.String("name", name),
		slog.Int("aliases", len(keys)),
		slog.Bool("admin_only", cmd.AdminOnly),
	)
	return nil
}

// ListCommands returns commands sorted by name; with visibleOnly it keeps
// only the ones meant for the public menu.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && !cmd.Listed() {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves text ("/cart", "cart@bot" or an alias such as
// "Корзина") to the registered command name and definition.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	key := commands.Key(text)
	if key == "" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := "/" + key
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	if name, ok := r.aliases[key]; ok {
		return name, r.commands[name], true
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for name, cmd := range r.commands {
		out[name] = cmd
	}
	return out
}

// RegisterCallback binds handler to a callback unique.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil {
		return errNilRegistry
	}
	if key == "" || handler == nil {
		return fmt.Errorf("callback %q: empty key or nil handler", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("callback %q already registered", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered uniques, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the handler for unknown callback uniques.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matches no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// menuSetter is the part of *tele.Bot that publishes the command menu.
type menuSetter interface {
	SetCommands(opts ...any) error
}

// PublishMenu sends the public command list to Telegram. Failures are logged.
func (r *Registry) PublishMenu(ctx context.Context, bot menuSetter) {
	menu := r.ListCommands(true)
	for i := range menu {
		menu[i].Text = strings.TrimPrefix(menu[i].Text, "/")
	}
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(ctx, wireComponent, "menu.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, wireComponent, "menu.publish",
		slog.String("status", "ok"),
		slog.Int("commands", len(menu)),
	)
}
