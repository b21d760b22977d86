package roverfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/rover"
	"github.com/gorilla/websocket"
)

const (
	historySize          = 1024
	subscriberBufferSize = 256
	subscribeTimeout     = 10 * time.Second
	writeTimeout         = 10 * time.Second
)

// Publisher serves records to feed clients. It keeps a bounded history
// per source to replay to clients resubscribing after a reconnect.
type Publisher struct {
	upgrader websocket.Upgrader

	lock        sync.Mutex
	history     map[externalapi.SourceID][]*rover.RawRecord
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn      *websocket.Conn
	sourceID  externalapi.SourceID
	send      chan *rover.RawRecord
	quit      chan struct{}
	closeOnce sync.Once
}

// NewPublisher returns a Publisher with no history
func NewPublisher() *Publisher {
	return &Publisher{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		history:     make(map[externalapi.SourceID][]*rover.RawRecord),
		subscribers: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and serves a single subscription
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Cannot upgrade feed connection from %s: %s", r.RemoteAddr, err)
		return
	}

	subscription := &Subscription{}
	conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
	err = conn.ReadJSON(subscription)
	if err != nil {
		log.Warnf("No subscription from %s: %s", r.RemoteAddr, err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	s := &subscriber{
		conn:     conn,
		sourceID: subscription.SourceID,
		send:     make(chan *rover.RawRecord, subscriberBufferSize),
		quit:     make(chan struct{}),
	}
	p.lock.Lock()
	for _, raw := range p.history[s.sourceID] {
		if raw.Height >= subscription.FromHeight {
			s.push(raw)
		}
	}
	p.subscribers[s] = struct{}{}
	p.lock.Unlock()
	log.Debugf("%s subscribed to %s from height %d", r.RemoteAddr, s.sourceID, subscription.FromHeight)

	spawn("roverfeed.subscriber.write", s.writeLoop)

	// Clients send nothing after subscribing. Reading detects the close.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
	p.lock.Lock()
	delete(p.subscribers, s)
	p.lock.Unlock()
	s.close()
}

// Publish sends record to every subscriber of its source
func (p *Publisher) Publish(record *externalapi.SourceRecord) {
	p.PublishRaw(rover.FromRecord(record))
}

// PublishRaw sends raw as is, without validating it
func (p *Publisher) PublishRaw(raw *rover.RawRecord) {
	sourceID := externalapi.SourceID(raw.SourceID)

	p.lock.Lock()
	defer p.lock.Unlock()

	history := append(p.history[sourceID], raw)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	p.history[sourceID] = history

	for s := range p.subscribers {
		if s.sourceID == sourceID {
			s.push(raw)
		}
	}
}

// DisconnectAll drops every subscriber. Clients reconnect on their own.
func (p *Publisher) DisconnectAll() {
	p.lock.Lock()
	defer p.lock.Unlock()

	for s := range p.subscribers {
		s.close()
	}
}

// Subscribers returns the number of connected subscribers
func (p *Publisher) Subscribers() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.subscribers)
}

// push must not block the publisher. A subscriber too slow to keep up
// is disconnected and will resubscribe from its last height.
func (s *subscriber) push(raw *rover.RawRecord) {
	select {
	case s.send <- raw:
	default:
		log.Warnf("Disconnecting a slow %s subscriber", s.sourceID)
		s.close()
	}
}

func (s *subscriber) writeLoop() {
	for {
		select {
		case raw := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteJSON(raw)
			if err != nil {
				log.Debugf("Cannot write to a %s subscriber: %s", s.sourceID, err)
				s.close()
				return
			}
		case <-s.quit:
			return
		}
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.conn.Close()
	})
}
