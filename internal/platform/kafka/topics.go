package kafka

import (
	"fmt"
	"strings"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
)

// Topics maps event families to topic names.
type Topics struct {
	Tasks         string
	Reminders     string
	Notifications string
	DeadLetter    string
}

// TopicsFromConfig reads topic names from cfg.
func TopicsFromConfig(cfg config.KafkaConfig) Topics {
	return Topics{
		Tasks:         cfg.TasksTopic,
		Reminders:     cfg.RemindersTopic,
		Notifications: cfg.NotificationsTopic,
		DeadLetter:    cfg.DeadLetterTopic,
	}
}

// For returns the topic for an unversioned event name such as
// "task.completed". The family is the segment before the first dot.
func (t Topics) For(name string) (string, error) {
	family, _, _ := strings.Cut(name, ".")
	var topic string
	switch family {
	case "task":
		topic = t.Tasks
	case "reminder":
		topic = t.Reminders
	case "notification":
		topic = t.Notifications
	}
	if topic == "" {
		return "", fmt.Errorf("no topic configured for event %q", name)
	}
	return topic, nil
}
