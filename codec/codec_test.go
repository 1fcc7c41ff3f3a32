package codec

import (
	"errors"
	"testing"
	"time"
)

type user struct {
	ID   int       `json:"id" msgpack:"id" cbor:"id"`
	Name string    `json:"name" msgpack:"name" cbor:"name"`
	At   time.Time `json:"at" msgpack:"at" cbor:"at"`
}

func sample() user {
	return user{ID: 7, Name: "ada", At: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestStructCodecs(t *testing.T) {
	codecs := map[string]Codec[user]{
		"json":     JSON[user]{},
		"msgpack":  Msgpack[user]{},
		"cbor":     MustCBOR[user](false),
		"cbor-det": MustCBOR[user](true),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(sample())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := c.Decode(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.ID != 7 || got.Name != "ada" || !got.At.Equal(sample().At) {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	if _, err := (JSON[user]{}).Decode([]byte("{not json")); err == nil {
		t.Fatalf("json: expected error")
	}
	if _, err := MustCBOR[user](false).Decode([]byte{0xff, 0x00}); err == nil {
		t.Fatalf("cbor: expected error")
	}
}

func TestCBORRejectsDuplicateKeys(t *testing.T) {
	// {"a": 1, "a": 2}
	dup := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	if _, err := MustCBOR[map[string]int](false).Decode(dup); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 3}
	if _, err := c.Decode([]byte("abcd")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
	v, err := c.Decode([]byte("abc"))
	if err != nil || v != "abc" {
		t.Fatalf("got %q, %v", v, err)
	}

	off := Limit[string]{Inner: String{}}
	if _, err := off.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("limit disabled: %v", err)
	}
}

func TestFramed(t *testing.T) {
	c := Framed[user]{Inner: JSON[user]{}}
	b, err := c.Encode(sample())
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil || got.Name != "ada" {
		t.Fatalf("got %+v, %v", got, err)
	}

	// a raw JSON payload written by an unframed writer is rejected
	raw, _ := (JSON[user]{}).Encode(sample())
	if _, err := c.Decode(raw); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}

	b[len(b)-2] ^= 0x01
	if _, err := c.Decode(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt on flipped bit, got %v", err)
	}
}

func TestRaw(t *testing.T) {
	b, _ := (Bytes{}).Encode([]byte{1, 2})
	if len(b) != 2 {
		t.Fatalf("bytes: %v", b)
	}
	s, _ := (String{}).Decode([]byte("hi"))
	if s != "hi" {
		t.Fatalf("string: %q", s)
	}
}
