package rpcapi

import (
	"encoding/json"
	"strconv"
)

// id64 serializes a 64-bit identifier as a JSON string, since JavaScript
// numbers cannot represent the full range of a transport chat or message
// id without precision loss.
type id64 int64

func (i id64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(i), 10))
}

func (i *id64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return err
		}
		*i = id64(n)
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*i = id64(v)
	return nil
}

const (
	minHolidayYear = 2024
	maxHolidayYear = 2030
)

func validHolidayYear(year int) bool {
	return year >= minHolidayYear && year <= maxHolidayYear
}
