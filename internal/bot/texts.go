package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/starshop/core/telegram/format"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/notify"
	"github.com/m3rciful/starshop/internal/shop"
)

const (
	defaultTitle = "ДОКТОР - ВРАЧ"

	textMainMenu      = "🏠 Главное меню:"
	textProducts      = "💊 Препараты:"
	textSubscriptions = "📦 Доступные подписки:"
	textCartEmpty     = "🛒 Ваша корзина пуста."
	textCartCleared   = "🗑 Корзина очищена."
	textUnknownItem   = "Товар не найден"

	textCheckoutEmpty      = "Корзина пуста"
	textCheckoutInProgress = "Оформление заказа уже идёт. Завершите его или нажмите «Отмена»."
	textAskName            = "Введите ФИО"
	textAskAddress         = "Введите адрес доставки"
	textEmptyInput         = "Пустое значение, попробуйте ещё раз"
	textCommandInDialog    = "Сейчас ожидается ответ текстом. Чтобы прервать, отправьте /cancel"
	textAwaitConfirmation  = "Подтвердите заказ кнопкой «Да» или нажмите «Отмена»"
	textNoCheckout         = "Нет активного оформления заказа"
	textOrderCancelled     = "Заказ отменён"
	textInsufficientFunds  = "Недостаточно звёзд для оформления заказа"
	textOrderPlaced        = "Заказ оформлен! Благодарим за покупку."
	textCartEmptied        = "Корзина опустела, заказ не оформлен"

	textHistoryEmpty = "История заказов пуста"
	textAddStarsHelp = "Использование: /addstars <user_id> <amount>"
	textAccessDenied = "Доступ запрещён"
	textAdminPanel   = "Админ-панель:"
	textNoUsers      = "Нет пользователей"
	textFileSent     = "Файл отправлен"

	textAskBroadcast  = "Введите текст сообщения:"
	textBroadcastMark = "📣 "
	textAskReport     = "Опишите проблему одним сообщением:"
	textReportSent    = "Спасибо! Сообщение передано администраторам."

	textHelp = "Команды:\n" +
		"/start - главное меню\n" +
		"/cart - корзина\n" +
		"/stars - баланс звёзд\n" +
		"/history - история заказов\n" +
		"/cancel - отменить оформление заказа"
	textUnknownText  = "Не понимаю. Откройте меню командой /start"
	textRateLimited  = "Слишком часто, подождите немного"
	textStorageError = "⚠️ Сервис временно недоступен, попробуйте позже"
)

func welcomeText(title string) string {
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	return "👋 Добро пожаловать в аптеку " + format.Escape(title) + "!"
}

func productButtonText(p catalog.Product) string {
	return fmt.Sprintf("%s — %d ⭐", p.Title(), p.Price)
}

func productCardText(p catalog.Product, inCart int) string {
	var b strings.Builder
	if p.Emoji != "" {
		b.WriteString(p.Emoji + " ")
	}
	b.WriteString(format.Bold(p.Name))
	b.WriteString("\n\n")
	if p.Description != "" {
		b.WriteString(format.Escape(p.Description))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Стоимость: %d ⭐\nВ корзине: %d", p.Price, inCart)
	return b.String()
}

func cartText(lines []catalog.PricedLine) string {
	var b strings.Builder
	b.WriteString("🛒 Корзина:\n\n")
	var total int64
	for _, l := range lines {
		total += l.Total
		fmt.Fprintf(&b, "%s × %d = %d ⭐\n", format.Escape(l.Product.Title()), l.Quantity, l.Total)
	}
	fmt.Fprintf(&b, "\nВсего: <b>%d</b> ⭐", total)
	return b.String()
}

func itemsList(lines []catalog.PricedLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s × %d", l.Product.Name, l.Quantity))
	}
	return strings.Join(parts, ", ")
}

func summaryText(s checkout.Summary) string {
	return fmt.Sprintf("Подтверждаете заказ?\nТовары: %s\nСумма: %d ⭐\nФИО: %s\nАдрес: %s",
		format.Escape(itemsList(s.Lines)),
		s.Total,
		format.Escape(s.RecipientName),
		format.Escape(s.Address),
	)
}

func insufficientText(res checkout.Result) string {
	return fmt.Sprintf("%s\nНужно: %d ⭐, на балансе: %d ⭐", textInsufficientFunds, res.Total, res.Balance)
}

func starsText(n int64) string {
	return fmt.Sprintf("У вас %d ⭐", n)
}

// orderItemsText renders order items against the catalog, falling back to the raw key.
func orderItemsText(cat *catalog.Catalog, items []shop.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := it.ProductKey
		if p, ok := cat.Lookup(it.ProductKey); ok {
			name = p.Name
		}
		parts = append(parts, fmt.Sprintf("%s × %d", name, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func historyText(cat *catalog.Catalog, orders []shop.Order) string {
	if len(orders) == 0 {
		return textHistoryEmpty
	}
	lines := make([]string, 0, len(orders))
	for _, o := range orders {
		lines = append(lines, fmt.Sprintf("%s: %d ⭐ - %s",
			o.CreatedAtText(), o.Total, orderItemsText(cat, o.Items)))
	}
	return strings.Join(lines, "\n")
}

func sumTotals(orders []shop.Order) int64 {
	var sum int64
	for _, o := range orders {
		sum += o.Total
	}
	return sum
}

func myStatsText(balance int64, orders []shop.Order) string {
	return fmt.Sprintf("📈 Моя статистика\n\nБаланс: %d ⭐\nЗаказов: %d\nПотрачено: %d ⭐",
		balance, len(orders), sumTotals(orders))
}

func adminStatsText(users int, orders []shop.Order) string {
	return fmt.Sprintf("Пользователей: %d\nВаших заказов: %d\nСумма заказов: %d ⭐",
		users, len(orders), sumTotals(orders))
}

func usersText(ids []shop.UserID) string {
	if len(ids) == 0 {
		return textNoUsers
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, strconv.FormatInt(int64(id), 10))
	}
	return strings.Join(lines, "\n")
}

func addStarsDoneText(uid shop.UserID, balance int64) string {
	return fmt.Sprintf("Готово. Баланс пользователя %d: %d ⭐", uid, balance)
}

func broadcastDoneText(rep notify.Report) string {
	return fmt.Sprintf("Рассылка завершена\nДоставлено: %d\nОшибок: %d", rep.Delivered, rep.Failed)
}

func orderNoticeText(o shop.Order) string {
	return fmt.Sprintf("Пользователь %d оформил заказ на %d ⭐", o.UserID, o.Total)
}

func cartNoticeText(uid shop.UserID, p catalog.Product) string {
	return fmt.Sprintf("Пользователь %d добавил в корзину %s", uid, p.Name)
}

func problemNoticeText(uid shop.UserID, username, text string) string {
	from := strconv.FormatInt(int64(uid), 10)
	if username != "" {
		from += " (@" + username + ")"
	}
	return fmt.Sprintf("🐞 Сообщение о проблеме от %s:\n%s", from, text)
}
