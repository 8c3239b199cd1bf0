package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"telebot encoded", &tele.Callback{Data: "\fproduct|ragvizax"}, "product", "ragvizax"},
		{"no payload", &tele.Callback{Data: "\fcart"}, "cart", ""},
		{"pipe in payload", &tele.Callback{Data: "\fx|a|b"}, "x", "a|b"},
		{"plain", &tele.Callback{Data: "menu"}, "menu", ""},
		{"already routed", &tele.Callback{Unique: "add", Data: "grazax"}, "add", "grazax"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}
