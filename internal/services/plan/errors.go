package plan

import "errors"

// Ожидаемые исходы операций над планом. Все они восстановимы и
// доносятся до пользователя с объяснением причины; фатальной категорией
// остаются только ошибки инфраструктуры хранилища.
var (
	// ErrAuthorization у вызывающего нет требуемой роли.
	ErrAuthorization = errors.New("caller lacks required role")
	// ErrCompliance не подтверждён возраст или не приняты условия.
	ErrCompliance = errors.New("age attestation or terms acceptance missing")
	// ErrCapacity план уже содержит максимум участников.
	ErrCapacity = errors.New("plan is at member capacity")
	// ErrInsufficientBalance списание увело бы баланс ниже нуля.
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrExpired срок действия приглашения истёк.
	ErrExpired = errors.New("invitation has expired")
	// ErrAlreadyAccepted приглашение уже разрешено.
	ErrAlreadyAccepted = errors.New("invitation is not pending")
	// ErrNotFound токен, пул или участие не найдены.
	ErrNotFound = errors.New("not found")
	// ErrInvariant попытка нарушить структурное правило,
	// например удалить владельца плана.
	ErrInvariant = errors.New("operation violates a structural rule")
	// ErrPurchaseNotAllowed тип плана не разрешает докупку токенов.
	ErrPurchaseNotAllowed = errors.New("plan type does not allow token purchase")
	// ErrAlreadyHasPlan у пользователя уже есть активный план.
	ErrAlreadyHasPlan = errors.New("user already has an active plan")
)
