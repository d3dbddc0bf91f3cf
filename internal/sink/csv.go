package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	. "ordergen/internal/common"
)

// CSVHeader mirrors the OrderEvent field order.
var CSVHeader = []string{"side", "type", "account_id", "price", "quantity", "order_id"}

// CSV is a row-per-event debugging dump. It is not a protocol.
type CSV struct {
	w      *csv.Writer
	closer io.Closer
	row    []string
}

// NewCSV writes the header to w. The caller keeps ownership of w.
func NewCSV(w io.Writer) (*CSV, error) {
	c := &CSV{
		w:   csv.NewWriter(w),
		row: make([]string, len(CSVHeader)),
	}
	if err := c.w.Write(CSVHeader); err != nil {
		return nil, err
	}
	return c, nil
}

func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", path, err)
	}
	c, err := NewCSV(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

func (c *CSV) Emit(e OrderEvent) error {
	c.row[0] = strconv.FormatUint(uint64(e.Side), 10)
	c.row[1] = strconv.FormatUint(uint64(e.Type), 10)
	c.row[2] = strconv.FormatUint(e.AccountID, 10)
	c.row[3] = strconv.FormatUint(e.Price, 10)
	c.row[4] = strconv.FormatUint(e.Quantity, 10)
	c.row[5] = strconv.FormatUint(e.OrderID, 10)
	return c.w.Write(c.row)
}

func (c *CSV) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		err = errors.Join(err, c.closer.Close())
	}
	return err
}
