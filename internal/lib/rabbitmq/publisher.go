package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Publisher описывает публикацию событий плана. Интерфейс позволяет
// подменять канал в тестах.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// ChannelPublisher публикует события через канал AMQP.
type ChannelPublisher struct {
	Channel *amqp.Channel
}

// Publish сериализует сообщение в JSON и публикует его в обменник
// событий плана с заданным ключом маршрутизации.
func (p *ChannelPublisher) Publish(routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.Channel.Publish(
		Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
