package base64

import (
	"encoding/base64"
	"strings"
)

// EncodeToBase64 encodes a string with standard padding
func EncodeToBase64(input string) string {
	return base64.StdEncoding.EncodeToString([]byte(input))
}

// DecodeFromBase64 decodes a standard base64 string. Values pasted from env
// files sometimes lose their padding, so missing padding is tolerated.
func DecodeFromBase64(input string) (string, error) {
	input = strings.TrimSpace(input)
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(input)
		if err != nil {
			return "", err
		}
	}
	return string(data), nil
}
