package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestListed(t *testing.T) {
	assert.True(t, Command{}.Listed())
	assert.False(t, Command{Hidden: true}.Listed())
	assert.False(t, Command{AdminOnly: true}.Listed())
}

func TestValidate(t *testing.T) {
	ok := Command{Handler: noop, Description: "Корзина", Aliases: []string{"корзина"}}
	assert.NoError(t, ok.Validate("/cart"))

	assert.ErrorContains(t, ok.Validate("cart"), "slash")
	assert.ErrorContains(t, ok.Validate("/"), "slash")
	assert.ErrorContains(t, Command{Description: "x"}.Validate("/cart"), "nil handler")
	assert.ErrorContains(t, Command{Handler: noop}.Validate("/cart"), "empty description")
	assert.ErrorIs(t, Command{Handler: noop, Description: "x", Aliases: []string{" / "}}.Validate("/cart"), errEmptyAlias)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "cart", Key("/cart"))
	assert.Equal(t, "cart", Key("/Cart@starshop_bot"))
	assert.Equal(t, "корзина", Key("  Корзина "))
	assert.Empty(t, Key("/"))
}
