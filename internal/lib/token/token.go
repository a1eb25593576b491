// Package token генерирует криптографически случайные токены приглашений.
// Токен передаётся приглашённому по почте и служит единственным способом
// разрешить приглашение, поэтому должен быть неугадываемым.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Size длина токена приглашения в байтах до кодирования.
const Size = 32

// Generate возвращает случайный токен, закодированный в base64url без
// дополнения — безопасный для вставки в ссылку.
func Generate() (string, error) {
	const op = "token.Generate"
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
