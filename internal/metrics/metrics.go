// Package metrics собирает и публикует метрики Prometheus для пула токенов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector регистрирует и обновляет метрики операций над пулом.
type Collector struct {
	tokensSpent         *prometheus.CounterVec
	deductRejected      prometheus.Counter
	invitationsCreated  prometheus.Counter
	membersActivated    prometheus.Counter
	purchasesCredited   prometheus.Counter
	periodResets        prometheus.Counter
}

// NewCollector создаёт Collector и регистрирует метрики в переданном
// реестре.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planpool_tokens_spent_total",
			Help: "Суммарное количество списанных токенов по видам использования",
		}, []string{"usage_type"}),
		deductRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planpool_deduct_rejected_total",
			Help: "Количество списаний, отклонённых из-за нехватки баланса",
		}),
		invitationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planpool_invitations_created_total",
			Help: "Количество созданных приглашений",
		}),
		membersActivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planpool_members_activated_total",
			Help: "Количество активированных участников",
		}),
		purchasesCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planpool_purchases_credited_total",
			Help: "Количество зачисленных покупок токенов",
		}),
		periodResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planpool_period_resets_total",
			Help: "Количество выполненных сбросов расчётного периода",
		}),
	}

	reg.MustRegister(
		c.tokensSpent,
		c.deductRejected,
		c.invitationsCreated,
		c.membersActivated,
		c.purchasesCredited,
		c.periodResets,
	)
	return c
}

// RecordTokensSpent учитывает успешное списание токенов.
func (c *Collector) RecordTokensSpent(usageType string, amount int) {
	c.tokensSpent.WithLabelValues(usageType).Add(float64(amount))
}

// RecordDeductRejected учитывает отказ в списании из-за баланса.
func (c *Collector) RecordDeductRejected() {
	c.deductRejected.Inc()
}

// RecordInvitationCreated учитывает созданное приглашение.
func (c *Collector) RecordInvitationCreated() {
	c.invitationsCreated.Inc()
}

// RecordMemberActivated учитывает активацию участника.
func (c *Collector) RecordMemberActivated() {
	c.membersActivated.Inc()
}

// RecordPurchaseCredited учитывает зачисленную покупку токенов.
func (c *Collector) RecordPurchaseCredited() {
	c.purchasesCredited.Inc()
}

// RecordPeriodReset учитывает выполненный сброс периода.
func (c *Collector) RecordPeriodReset() {
	c.periodResets.Inc()
}
