package models

import "time"

// Статусы приглашения. Терминальные: accepted, declined, revoked, expired.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusRevoked  = "revoked"
	InviteStatusExpired  = "expired"
)

// InvitationTTL срок действия приглашения. Политика фиксированная,
// не настраивается на вызов.
const InvitationTTL = 7 * 24 * time.Hour

// AgeAttestationText фиксированный текст подтверждения возраста,
// сохраняемый для аудита соответствия требованиям.
const AgeAttestationText = "I confirm that the invited person is at least 13 years of age."

// Invitation представляет ограниченное по времени предложение
// присоединиться к пулу. Переход в accepted возможен не более одного раза.
type Invitation struct {
	ID                 string    // Уникальный идентификатор приглашения
	PoolID             string    // Идентификатор пула
	InvitedEmail       string    // Email приглашённого
	InvitationToken    string    // Уникальный неугадываемый токен
	Status             string    // Статус: pending, accepted, declined, revoked, expired
	ExpiresAt          time.Time // Момент истечения (создание + 7 дней)
	AgeAttestationBy   string    // UID пригласившего, подтвердившего возраст
	AgeAttestationText string    // Текст подтверждения возраста
	AgeAttestationAt   time.Time // Момент подтверждения возраста
	CreatedAt          time.Time // Дата создания приглашения
}

// PendingInvitationInfo приглашение глазами приглашённого.
type PendingInvitationInfo struct {
	InvitationID string    `json:"invitation_id"`
	InviterName  string    `json:"inviter_name"`
	PlanType     string    `json:"plan_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}
