package extract

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// ToUTF8 transcodes body to UTF-8 using the charset named in contentType,
// a byte-order mark or a <meta> declaration. It returns the detected
// encoding name; undecodable input is returned unchanged.
func ToUTF8(body []byte, contentType string) ([]byte, string) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body, name
	}
	// without a declaration DetermineEncoding guesses windows-1252
	if !certain && utf8.Valid(body) {
		return body, "utf-8"
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body, name
	}
	return decoded, name
}
