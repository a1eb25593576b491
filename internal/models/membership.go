package models

import "time"

// Роли участников пула.
const (
	RolePrimary    = "primary"
	RoleAdmin      = "admin"
	RoleAssociated = "associated"
)

// Статусы участия. Участие никогда не удаляется физически:
// удаление — это перевод в статус removed (требование аудита).
const (
	MemberPending = "pending"
	MemberActive  = "active"
	MemberRemoved = "removed"
)

// Membership представляет связь пользователя с пулом токенов.
// На пул приходится ровно одно участие с ролью primary.
// Участие не может быть active без подтверждения возраста и принятия условий.
type Membership struct {
	ID                   string    // Уникальный идентификатор участия
	PoolID               string    // Идентификатор пула
	UserUID              string    // UID пользователя
	Username             string    // Имя пользователя из сервиса аутентификации
	Role                 string    // Роль: primary, admin, associated
	Status               string    // Статус: pending, active, removed
	AgeVerified          bool      // Подтверждён ли возраст участника
	TermsAccepted        bool      // Приняты ли условия использования
	TokensUsedThisPeriod int       // Токены, израсходованные участником в текущем периоде
	CreatedAt            time.Time // Дата создания участия
}

// MemberInfo данные участника для выдачи владельцу плана.
type MemberInfo struct {
	UserUID       string `json:"user_uid"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	TokensUsed    int    `json:"tokens_used"`
	AgeVerified   bool   `json:"age_verified"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// CapacityInfo результат проверки вместимости плана.
type CapacityInfo struct {
	AtCapacity   bool `json:"at_capacity"`
	CurrentCount int  `json:"current_count"`
	MaxUsers     int  `json:"max_users"`
}

// UsageEvent запись о списании токенов, привязанная к участнику.
type UsageEvent struct {
	ID        int       `json:"id"`
	PoolID    string    `json:"pool_id"`
	UserUID   string    `json:"user_uid"`
	Tokens    int       `json:"tokens"`
	UsageType string    `json:"usage_type"`
	CreatedAt time.Time `json:"created_at"`
}
