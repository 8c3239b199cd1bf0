// Package keyboard builds inline keyboards from flat button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button. A non-empty URL makes it a link
// button and Unique/Data are ignored.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

const defaultCancelButtonText = "❌ Отмена"

func (b InlineBtn) inline(markup *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *markup.URL(b.Text, b.URL).Inline()
	}
	return *markup.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return Adjust(buttons, 1)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = btn.inline(markup)
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Adjust lays buttons out in rows of the given sizes; the last size repeats
// for the remaining buttons. Adjust(b, 2, 2) with five buttons yields 2, 2, 1.
func Adjust(buttons []InlineBtn, sizes ...int) *tele.ReplyMarkup {
	return InlineButtonsRows(Rows(buttons, sizes...)...)
}

// Rows splits buttons the way Adjust does without building the markup.
func Rows(buttons []InlineBtn, sizes ...int) [][]InlineBtn {
	if len(sizes) == 0 {
		sizes = []int{1}
	}
	var rows [][]InlineBtn
	for i, n := 0, 0; i < len(buttons); n++ {
		size := sizes[min(n, len(sizes)-1)]
		if size <= 0 {
			size = 1
		}
		end := min(i+size, len(buttons))
		rows = append(rows, buttons[i:end])
		i = end
	}
	return rows
}

// CancelButton returns a reusable cancel inline button for the provided markup and action.
// Optional arguments allow overriding payload (first value) and button label (second value).
func CancelButton(markup *tele.ReplyMarkup, action string, options ...string) tele.Btn {
	payload := "cancel"
	if len(options) > 0 && options[0] != "" {
		payload = options[0]
	}
	text := defaultCancelButtonText
	if len(options) > 1 && options[1] != "" {
		text = options[1]
	}
	return markup.Data(text, action, payload)
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(action string, options ...string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := CancelButton(markup, action, options...)
	markup.InlineKeyboard = [][]tele.InlineButton{{*btn.Inline()}}
	return markup
}
