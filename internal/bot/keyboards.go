package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/telegram/keyboard"
	"github.com/m3rciful/starshop/internal/catalog"
)

// Callback uniques. Product buttons carry the product key as payload.
const (
	cbMain          = "main"
	cbProducts      = "drugs"
	cbSubscriptions = "subscriptions"
	cbView          = "view"
	cbAdd           = "add"
	cbRemove        = "remove"
	cbCart          = "cart"
	cbClearCart     = "clear_cart"
	cbCheckout      = "checkout"
	cbConfirm       = "confirm"
	cbCancel        = "cancel"
	cbMyStats       = "my_stats"
	cbReport        = "report_problem"

	cbAdminPanel     = "admin_panel"
	cbAdminUsers     = "admin_users"
	cbAdminOrders    = "admin_orders"
	cbAdminBroadcast = "admin_broadcast"
	cbAdminStats     = "admin_stats"
)

func btn(text, unique string, data ...string) keyboard.InlineBtn {
	b := keyboard.InlineBtn{Text: text, Unique: unique}
	if len(data) > 0 {
		b.Data = data[0]
	}
	return b
}

func backToMenu(text string) keyboard.InlineBtn {
	return btn(text, cbMain)
}

func mainMenuButtons(admin bool, siteURL string) []keyboard.InlineBtn {
	buttons := []keyboard.InlineBtn{
		btn("💊 Препараты", cbProducts),
		btn("📈 Моя статистика", cbMyStats),
		btn("📦 Подписки", cbSubscriptions),
		btn("🛒 Корзина", cbCart),
		btn("🐞 Сообщить о проблеме", cbReport),
	}
	if admin {
		buttons = append(buttons, btn("👥 Админ-панель", cbAdminPanel))
	}
	if siteURL != "" {
		buttons = append(buttons, keyboard.InlineBtn{Text: "🌐 Сайт", URL: siteURL})
	}
	return buttons
}

func mainMenuMarkup(admin bool, siteURL string) *tele.ReplyMarkup {
	return keyboard.Adjust(mainMenuButtons(admin, siteURL), 2, 2)
}

func productListMarkup(products []catalog.Product) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(products)+1)
	for _, p := range products {
		buttons = append(buttons, btn(productButtonText(p), cbView, p.Key))
	}
	buttons = append(buttons, backToMenu("🔙 Назад в меню"))
	return keyboard.InlineButtons(buttons)
}

func productCardMarkup(key string, inCart int) *tele.ReplyMarkup {
	var buttons []keyboard.InlineBtn
	if inCart > 0 {
		buttons = append(buttons,
			btn("➕ Добавить ещё", cbAdd, key),
			btn("➖ Удалить", cbRemove, key),
		)
	} else {
		buttons = append(buttons, btn("➕ Добавить в корзину", cbAdd, key))
	}
	buttons = append(buttons, btn("🛒 Перейти в корзину", cbCart))
	if inCart > 0 {
		return keyboard.Adjust(buttons, 2, 1)
	}
	return keyboard.InlineButtons(buttons)
}

func cartMarkup(lines []catalog.PricedLine) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(lines)+3)
	for _, l := range lines {
		buttons = append(buttons, btn("❌ Удалить один "+l.Product.Name, cbRemove, l.Product.Key))
	}
	buttons = append(buttons,
		btn("💳 Оформить", cbCheckout),
		btn("🗑 Очистить", cbClearCart),
		backToMenu("🔙 Назад"),
	)
	return keyboard.InlineButtons(buttons)
}

func confirmMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		btn("Да", cbConfirm),
		btn("Отмена", cbCancel),
	})
}

func adminPanelMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		btn("👤 Пользователи", cbAdminUsers),
		btn("📝 Заказы", cbAdminOrders),
		btn("📣 Рассылка", cbAdminBroadcast),
		btn("📊 Статистика", cbAdminStats),
		backToMenu("🔙 Назад"),
	})
}

func backToAdminMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{btn("🔙 Назад", cbAdminPanel)})
}

// conversationCancelMarkup aborts a broadcast or problem report.
func conversationCancelMarkup() *tele.ReplyMarkup {
	return keyboard.SingleCancelMarkup(cbCancel)
}
