package idwrap

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDWrap wraps a ULID so models never depend on the ulid package directly.
// The zero value is the nil id.
type IDWrap struct {
	ulid ulid.ULID
}

func NewNow() IDWrap {
	return IDWrap{ulid: ulid.Make()}
}

func NewText(text string) (IDWrap, error) {
	id, err := ulid.Parse(text)
	if err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func NewTextMust(text string) IDWrap {
	id, err := NewText(text)
	if err != nil {
		panic(err)
	}
	return id
}

func NewFromBytes(data []byte) (IDWrap, error) {
	var id ulid.ULID
	if err := id.UnmarshalBinary(data); err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func (u IDWrap) IsZero() bool {
	return u == IDWrap{}
}

func (u IDWrap) String() string {
	return u.ulid.String()
}

func (u IDWrap) Bytes() []byte {
	return u.ulid[:]
}

func (u IDWrap) Compare(other IDWrap) int {
	return u.ulid.Compare(other.ulid)
}

// Time returns the creation time embedded in the ULID.
func (u IDWrap) Time() time.Time {
	return time.UnixMilli(int64(u.ulid.Time()))
}

func (u IDWrap) UnixMilli() int64 {
	return int64(u.ulid.Time())
}

// SQL driver support so ids can be stored as 16-byte blobs.

func (u IDWrap) Value() (driver.Value, error) {
	return u.ulid.Value()
}

func (u *IDWrap) Scan(value any) error {
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("idwrap: cannot scan %T", value)
	}
	return u.ulid.UnmarshalBinary(data)
}
