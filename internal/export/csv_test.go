package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/starshop/internal/shop"
)

func TestWriteOrders(t *testing.T) {
	var buf bytes.Buffer
	orders := []shop.Order{
		{
			ID: 1, UserID: 42, Total: 22600,
			Items:         []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}},
			RecipientName: "Иванов, Иван",
			Address:       "Москва\nкв. 5",
			CreatedAt:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		},
		{ID: 2, UserID: 7, Total: 0, CreatedAt: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, WriteOrders(&buf, orders))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"1", "42", `[["ragvizax",2]]`, "22600", "Иванов, Иван", "Москва\nкв. 5", "2025-03-14T09:00:00.000000Z"}, rows[1])
	assert.Equal(t, "[]", rows[2][2])
}

func TestWriteOrdersEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, nil))
	assert.Equal(t, "id,user_id,items,total,fio,address,created_at\n", buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "orders_20250314_090102.csv", FileName(time.Date(2025, 3, 14, 9, 1, 2, 0, time.UTC)))
}
