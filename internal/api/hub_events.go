package api

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/carousel"
	"github.com/foodmap/foodmap/internal/popup"
	"github.com/foodmap/foodmap/internal/reminder"
)

// CarouselControls is the slice of the carousel engine driven by client
// events: hover pauses autoplay, container measurements resize the track.
type CarouselControls interface {
	Pause()
	Resume()
	Resize(boxPX, cardPX float64)
}

// PopupControls hides the popup when a client dismisses it.
type PopupControls interface {
	Hide()
}

// ReminderControls dismisses the daily reminder for the rest of the day.
type ReminderControls interface {
	Dismiss()
}

var (
	_ CarouselControls = (*carousel.Engine)(nil)
	_ PopupControls    = (*popup.Popup)(nil)
	_ ReminderControls = (*reminder.Scheduler)(nil)
)

// Inbound websocket event types.
const (
	eventCarouselHover   = "carousel.hover"
	eventCarouselMeasure = "carousel.measure"
	eventPopupDismiss    = "popup.dismiss"
)

// clientEvent is one inbound websocket message. Clients report hover
// enter/leave, the measured carousel container, and popup dismissal.
type clientEvent struct {
	Type     string  `json:"type"`
	Entered  bool    `json:"entered"`
	BoxPX    float64 `json:"box_px"`
	CardPX   float64 `json:"card_px"`
	Reminder bool    `json:"reminder"`
}

// HubDispatcher routes inbound hub messages to the server-side component
// engines.
type HubDispatcher struct {
	logger   *zap.Logger
	carousel CarouselControls
	popup    PopupControls
	reminder ReminderControls
}

// NewHubDispatcher creates the dispatcher. Any control may be nil; its
// events are then dropped.
func NewHubDispatcher(logger *zap.Logger, eng CarouselControls, pp PopupControls, rem ReminderControls) *HubDispatcher {
	return &HubDispatcher{logger: logger, carousel: eng, popup: pp, reminder: rem}
}

// Dispatch decodes one raw client message and applies it. Malformed or
// unknown payloads are logged and dropped.
func (d *HubDispatcher) Dispatch(raw []byte) {
	var ev clientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		d.logger.Debug("ws.bad_client_event", zap.Error(err))
		return
	}

	switch ev.Type {
	case eventCarouselHover:
		if d.carousel == nil {
			return
		}
		if ev.Entered {
			d.carousel.Pause()
		} else {
			d.carousel.Resume()
		}
	case eventCarouselMeasure:
		if d.carousel != nil && ev.BoxPX > 0 {
			d.carousel.Resize(ev.BoxPX, ev.CardPX)
		}
	case eventPopupDismiss:
		if ev.Reminder && d.reminder != nil {
			d.reminder.Dismiss()
			return
		}
		if d.popup != nil {
			d.popup.Hide()
		}
	default:
		d.logger.Debug("ws.unknown_client_event", zap.String("type", ev.Type))
	}
}
