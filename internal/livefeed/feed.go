// Package livefeed streams fleet events to browsers over server-sent events.
package livefeed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

// Event kinds published by the dispatch services.
const (
	KindDronePosition = "drone-position"
	KindMissionState  = "mission-state"
)

type envelope struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Feed fans events out to every connected /events subscriber.
type Feed struct {
	srv *sse.Server
	log *zap.Logger
}

func New(log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{srv: sse.NewServer(), log: log}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.srv.ServeHTTP(w, r)
}

// Publish sends v as a JSON envelope tagged with kind. Failures are logged and
// never reach the caller.
func (f *Feed) Publish(kind string, v any) {
	b, err := json.Marshal(envelope{Type: kind, At: time.Now().UTC(), Data: v})
	if err != nil {
		f.log.Warn("livefeed: marshal event", zap.String("kind", kind), zap.Error(err))
		return
	}
	e := &sse.Message{}
	e.AppendData(b)
	if err := f.srv.Publish(e); err != nil {
		f.log.Debug("livefeed: publish", zap.String("kind", kind), zap.Error(err))
	}
}
