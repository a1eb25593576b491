// Package jwt реализует парсинг JWT токенов, выданных внешним сервисом
// аутентификации. Токены подписаны общим секретом (HS256); сервис пулов
// не выпускает их сам, а только валидирует.
//
// CustomClaims расширяет стандартные claims JWT, добавляя username,
// email, uid и роль пользователя.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	Username             string `json:"username"` // Имя пользователя
	Email                string `json:"email"`    // Email пользователя
	UserUID              string `json:"useruid"`  // Уникальный идентификатор пользователя
	Role                 string `json:"role"`     // Роль пользователя в системе аутентификации
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (ExpiresAt, IssuedAt и пр.)
}

// GenerateToken создает JWT токен с заданными claims, подписывая его
// секретным ключом. Используется в тестах и вспомогательных утилитах:
// в проде токены выпускает внешний сервис аутентификации.
func (j *MakerImpl) GenerateToken(username, email, useruid, role string) (string, error) {
	claims := CustomClaims{
		Username: username,
		Email:    email,
		UserUID:  useruid,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит JWT токен, проверяет его подпись и валидность,
// возвращает CustomClaims с данными, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
