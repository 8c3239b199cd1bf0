// Package export renders the order log as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/m3rciful/starshop/internal/shop"
)

// Header lists the columns in table order.
var Header = []string{"id", "user_id", "items", "total", "fio", "address", "created_at"}

// WriteOrders writes a header row followed by one row per order.
func WriteOrders(w io.Writer, orders []shop.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, o := range orders {
		items, err := shop.EncodeItems(o.Items)
		if err != nil {
			return fmt.Errorf("order %d: %w", o.ID, err)
		}
		row := []string{
			strconv.FormatInt(o.ID, 10),
			strconv.FormatInt(int64(o.UserID), 10),
			items,
			strconv.FormatInt(o.Total, 10),
			o.RecipientName,
			o.Address,
			o.CreatedAtText(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the attachment name for an export taken at t.
func FileName(t time.Time) string {
	return "orders_" + t.UTC().Format("20060102_150405") + ".csv"
}
