package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

var singletonMutex sync.Mutex

// NotificationHub fans workflow state transitions and signature requests out
// to connected UI sessions, keyed by topic (approvals/<milestoneId>,
// signers/<address>).
type NotificationHub struct {
	registrationMutex sync.Mutex
	listeners         map[string][]*websocket.Conn
}

func (hub *NotificationHub) RegisterListener(topic string, conn *websocket.Conn) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	hub.listeners[topic] = append(hub.listeners[topic], conn)
}

func (hub *NotificationHub) UnregisterListener(topic string, conn *websocket.Conn) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	connAddrToClose := conn.RemoteAddr()

	if len(hub.listeners[topic]) <= 1 {
		delete(hub.listeners, topic)
		return
	}

	var indexToDelete int
	for i, listener := range hub.listeners[topic] {
		if listener.RemoteAddr() == connAddrToClose {
			indexToDelete = i
			break
		}
	}

	hub.listeners[topic] = append(hub.listeners[topic][:indexToDelete], hub.listeners[topic][indexToDelete+1:]...)
}

func (hub *NotificationHub) Publish(targetTopic string, event any) {
	hub.registrationMutex.Lock()
	listeners := hub.listeners[targetTopic]
	hub.registrationMutex.Unlock()

	for _, listener := range listeners {
		_ = listener.WriteJSON(event)
	}
}

var notificationHubSingleton *NotificationHub

func NewNotificationHub() *NotificationHub {
	singletonMutex.Lock()
	defer singletonMutex.Unlock()

	if notificationHubSingleton == nil {
		notificationHubSingleton = &NotificationHub{
			listeners: make(map[string][]*websocket.Conn),
		}
	}

	return notificationHubSingleton
}
