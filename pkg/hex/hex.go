package hex

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

var EncodeToString = hex.EncodeToString

// Hex is rendered 0x prefixed, as the ledger RPC does.
type Hex []byte

func (h Hex) String() string {
	return "0x" + hex.EncodeToString(h)
}

func (h Hex) Bytes() []byte {
	return []byte(h)
}

func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// DecodeString accepts input with or without the 0x prefix.
func DecodeString(s string) (Hex, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func decodeHex(bz []byte) (Hex, error) {
	// drop quotes
	s := strings.Trim(string(bz), "\"")
	s = strings.Trim(s, "'")
	return DecodeString(s)
}

func (h *Hex) UnmarshalJSON(data []byte) error {
	bz, err := decodeHex(data)
	if err != nil {
		return err
	}
	*h = bz
	return nil
}

func (h *Hex) UnmarshalText(data []byte) error {
	bz, err := decodeHex(data)
	if err != nil {
		return err
	}
	*h = bz
	return nil
}

func (h Hex) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
