package eventpublisher

import (
	"go-firestore-ratings/internal/eventpublisher/event"
)

type Publisher interface {
	Subscribe(event.EventWChannel)
	Unsubscribe(event.EventWChannel)
}
