package rabbitmq

// QueueConfig привязка очереди к ключу маршрутизации обменника plan-events.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации событий плана.
const (
	RoutingInvitationCreated = "invitation.created"
	RoutingLowBalance        = "pool.low_balance"
	RoutingPeriodReset       = "pool.period_reset"
)

// GetPlanEventQueues возвращает очереди, которые потребляют внешние
// коллабораторы: доставка уведомлений и аналитика.
func GetPlanEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "plan.invitation.created", RoutingKey: RoutingInvitationCreated},
		{QueueName: "plan.pool.low_balance", RoutingKey: RoutingLowBalance},
		{QueueName: "plan.pool.period_reset", RoutingKey: RoutingPeriodReset},
	}
}
