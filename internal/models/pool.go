// Package models содержит доменные структуры общего пула токенов,
// участников плана, приглашений и журнала аудита, а также
// вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Типы планов, определяющие лимиты пула.
const (
	PlanVisitor    = "visitor"
	PlanStandard   = "standard"
	PlanMinistry   = "ministry"
	PlanBusiness   = "business"
	PlanEnterprise = "enterprise"
)

// Статусы пула токенов.
const (
	PoolActive    = "active"
	PoolSuspended = "suspended"
	PoolExpired   = "expired"
)

// TokenPool представляет общий пул токенов одного плана.
// Баланс изменяется только операциями списания, покупки и сброса периода —
// инвариант current_balance >= 0 обеспечивается хранилищем.
type TokenPool struct {
	ID                string    // Уникальный идентификатор пула
	OwnerUserUID      string    // UID владельца плана (primary)
	PlanType          string    // Тип плана: visitor, standard, ministry, business, enterprise
	BaseLimit         int       // Базовый месячный лимит токенов
	PurchasedTokens   int       // Докупленные токены в текущем периоде
	CurrentBalance    int       // Текущий остаток токенов
	PurchaseCarryover bool      // Переносятся ли купленные токены в следующий период
	PeriodStart       time.Time // Начало расчётного периода
	PeriodEnd         time.Time // Конец расчётного периода
	Status            string    // Статус пула: active, suspended, expired
	CreatedAt         time.Time // Дата создания пула
}

// PoolSummary агрегированные данные пула для выдачи пользователю.
type PoolSummary struct {
	Available int       `json:"available"`
	Used      int       `json:"used"`
	Purchased int       `json:"purchased"`
	Limit     int       `json:"limit"`
	PeriodEnd time.Time `json:"period_end"`
}

// PlanInfo сводная информация о плане пользователя.
// HasPlan = false означает пустое состояние: остальные поля нулевые.
type PlanInfo struct {
	HasPlan            bool   `json:"has_plan"`
	PlanType           string `json:"plan_type,omitempty"`
	Role               string `json:"role,omitempty"`
	Balance            int    `json:"balance"`
	MonthlyLimit       int    `json:"monthly_limit"`
	MaxUsers           int    `json:"max_users"`
	MemberCount        int    `json:"member_count"`
	PendingInvitations int    `json:"pending_invitations"`
}

// PlanTypeLimits справочные лимиты для типа плана.
// Данные только для чтения, заполняются миграцией при деплое.
type PlanTypeLimits struct {
	PlanType            string   // Тип плана
	MaxUsers            int      // Максимум участников (active + pending)
	MonthlyTokenLimit   int      // Месячный лимит токенов
	AllowsPurchase      bool     // Разрешена ли докупка токенов
	PurchaseCarryover   bool     // Переносятся ли купленные токены между периодами
	DefaultCommunityIDs []string // Сообщества, доступные участникам по умолчанию
}
