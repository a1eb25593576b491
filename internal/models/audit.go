package models

import "time"

// Типы аудируемых действий над чувствительными данными.
const (
	AuditListMembers      = "list_members"
	AuditListUsage        = "list_usage"
	AuditRemoveMember     = "remove_member"
	AuditCreateInvitation = "create_invitation"
	AuditAcceptInvitation = "accept_invitation"
	AuditRevokeInvitation = "revoke_invitation"
	AuditPurchaseTokens   = "purchase_tokens"
	AuditCancelPlan       = "cancel_plan"
)

// Типы целевых сущностей аудита.
const (
	AuditTargetPool       = "token_pool"
	AuditTargetMembership = "membership"
	AuditTargetInvitation = "invitation"
)

// AuditLogEntry неизменяемая запись журнала аудита.
// После вставки запись никогда не обновляется и не удаляется.
type AuditLogEntry struct {
	ID              int       // Идентификатор записи
	AccessorUserUID string    // UID пользователя, совершившего действие
	ActionType      string    // Тип действия
	TargetType      string    // Тип целевой сущности
	TargetID        string    // Идентификатор целевой сущности
	AccessorIP      string    // IP-адрес источника запроса
	AccessorUA      string    // User-Agent источника запроса
	ResultSummary   string    // Краткий итог действия
	CreatedAt       time.Time // Момент записи
}

// AuditContext данные запроса, сопровождающие запись аудита.
type AuditContext struct {
	IP        string
	UserAgent string
}
