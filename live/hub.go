package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Типы сообщений, рассылаемых в комнату турнира.
const (
	MessageAvailabilityUpdate = "AVAILABILITY_UPDATED"
	MessageLeaderboardUpdate  = "LEADERBOARD_UPDATED"
	MessageStageAdvanced      = "STAGE_ADVANCED"
	MessageStatusChanged      = "TOURNAMENT_STATUS_CHANGED"
)

// Message - конверт для всех сообщений, уходящих подписчикам комнаты.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// TournamentRoom возвращает имя комнаты для турнира.
func TournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

// Hub раздаёт события реального времени по комнатам. Одна комната - один
// турнир: табло занятости и таблицы лидеров обновляются без перезагрузки.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.logger.Debug("live client registered", slog.String("room", client.Room), slog.Int("room_clients", len(h.rooms[client.Room])))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.Room]; ok {
				if _, okClient := roomClients[client]; okClient {
					client.mu.Lock()
					if !client.closed {
						close(client.send)
						client.closed = true
					}
					client.mu.Unlock()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom отправляет сообщение всем клиентам комнаты. Клиенты с
// забитым каналом пропускаются: медленный подписчик не должен задерживать
// остальных.
func (h *Hub) BroadcastToRoom(roomID string, message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	message.RoomID = roomID
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal live message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	for client := range roomClients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("live client send buffer full, dropping message", slog.String("room", roomID))
		}
		client.mu.Unlock()
	}
}

// BroadcastAvailability публикует свежий снимок занятости сквадов турнира.
func (h *Hub) BroadcastAvailability(tournamentID int, payload interface{}) {
	h.BroadcastToRoom(TournamentRoom(tournamentID), Message{Type: MessageAvailabilityUpdate, Payload: payload})
}

// BroadcastLeaderboard публикует обновлённую таблицу лидеров этапа.
func (h *Hub) BroadcastLeaderboard(tournamentID int, payload interface{}) {
	h.BroadcastToRoom(TournamentRoom(tournamentID), Message{Type: MessageLeaderboardUpdate, Payload: payload})
}

// BroadcastStageAdvanced уведомляет о переходе игроков на следующий этап.
func (h *Hub) BroadcastStageAdvanced(tournamentID int, payload interface{}) {
	h.BroadcastToRoom(TournamentRoom(tournamentID), Message{Type: MessageStageAdvanced, Payload: payload})
}

// BroadcastStatusChanged уведомляет о смене статуса турнира.
func (h *Hub) BroadcastStatusChanged(tournamentID int, payload interface{}) {
	h.BroadcastToRoom(TournamentRoom(tournamentID), Message{Type: MessageStatusChanged, Payload: payload})
}
