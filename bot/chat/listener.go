package chat

import "FacilityBot/entity"

// EventListener is notified about session lifecycle changes. This lets the
// operator feed observe conversations without the engine importing it.
type EventListener interface {
	SessionEvent(event entity.SessionEvent)
}
