// Package repository реализует хранилище данных на основе PostgreSQL
// для управления пулами токенов, участниками, приглашениями и журналом
// аудита. Все операции над балансом пула выполняются одним условным
// UPDATE либо в транзакции с блокировкой строки пула, чтобы инварианты
// сохранялись при конкурентных вызовах.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки хранилища, различимые на уровне бизнес-логики.
var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance списание увело бы баланс пула ниже нуля.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrCapacityReached план уже содержит максимум участников и приглашений.
	ErrCapacityReached = errors.New("plan capacity reached")
	// ErrInviteExpired срок действия приглашения истёк.
	ErrInviteExpired = errors.New("invitation expired")
	// ErrInviteNotPending приглашение уже разрешено: принято, отозвано или отклонено.
	ErrInviteNotPending = errors.New("invitation is not pending")
	// ErrDuplicatePurchase платёж с таким идентификатором уже зачислен.
	ErrDuplicatePurchase = errors.New("purchase already credited")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пулами, участниками и приглашениями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'token_pools'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table token_pools missing or query error: %w", err)
	}
	return nil
}
