package roverfeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/rover"
	"github.com/btcsuite/go-socks/socks"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultReconnectInterval    = time.Second
	defaultMaxReconnectInterval = time.Minute
	maxBackoffShift             = 16
	recordsBufferSize           = 64
	handshakeTimeout            = 10 * time.Second
)

// ClientConfig configures a Client
type ClientConfig struct {
	SourceID externalapi.SourceID
	URL      string

	// Proxy is an optional SOCKS5 proxy address
	Proxy     string
	ProxyUser string
	ProxyPass string

	// ReconnectInterval is the delay after the first failed connection.
	// It doubles with every further failure up to MaxReconnectInterval.
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
}

// Client is a Rover following a single source on a feed
type Client struct {
	cfg     ClientConfig
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	records chan *externalapi.SourceRecord

	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once
	stop   sync.Once
	done   chan struct{}

	connLock sync.Mutex
	conn     *websocket.Conn

	// nextHeight is the height to resubscribe from
	nextHeight uint64
}

var _ rover.Rover = (*Client)(nil)

// NewClient returns a Client for cfg. Nothing is dialed before Start.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if !cfg.SourceID.IsValid() {
		return nil, errors.Errorf("invalid source id %q", cfg.SourceID)
	}
	if cfg.URL == "" {
		return nil, errors.Errorf("no feed URL for source %s", cfg.SourceID)
	}
	clientConfig := *cfg
	if clientConfig.ReconnectInterval <= 0 {
		clientConfig.ReconnectInterval = defaultReconnectInterval
	}
	if clientConfig.MaxReconnectInterval < clientConfig.ReconnectInterval {
		clientConfig.MaxReconnectInterval = defaultMaxReconnectInterval
		if clientConfig.MaxReconnectInterval < clientConfig.ReconnectInterval {
			clientConfig.MaxReconnectInterval = clientConfig.ReconnectInterval
		}
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	if clientConfig.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     clientConfig.Proxy,
			Username: clientConfig.ProxyUser,
			Password: clientConfig.ProxyPass,
		}
		dialer.Proxy = nil
		dialer.NetDial = proxy.Dial
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     clientConfig,
		dialer:  dialer,
		limiter: rate.NewLimiter(rate.Every(clientConfig.ReconnectInterval), 1),
		records: make(chan *externalapi.SourceRecord, recordsBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

// SourceID returns the id of the followed source
func (c *Client) SourceID() externalapi.SourceID {
	return c.cfg.SourceID
}

// Records returns the record stream. It is closed once the client stops.
func (c *Client) Records() <-chan *externalapi.SourceRecord {
	return c.records
}

// Start connects in the background and keeps reconnecting until Stop
func (c *Client) Start() error {
	c.start.Do(func() {
		spawn("roverfeed.Client.run", c.run)
	})
	return nil
}

// Stop disconnects and waits for the client to shut down
func (c *Client) Stop() {
	c.stop.Do(func() {
		c.cancel()
		c.closeConn()
		// A client that never started has nothing to wait for
		c.start.Do(func() {
			close(c.records)
			close(c.done)
		})
		<-c.done
	})
}

func (c *Client) run() {
	defer close(c.done)
	defer close(c.records)

	failures := 0
	for {
		err := c.limiter.Wait(c.ctx)
		if err != nil {
			return
		}
		conn, err := c.connect()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			c.backoff(failures)
			log.Warnf("Cannot connect to the %s feed at %s: %s", c.cfg.SourceID, c.cfg.URL, err)
			continue
		}
		failures = 0
		c.backoff(failures)
		log.Infof("Following %s on %s from height %d", c.cfg.SourceID, c.cfg.URL, c.nextHeight)

		err = c.readLoop(conn)
		c.closeConn()
		if c.ctx.Err() != nil {
			return
		}
		log.Warnf("Lost the %s feed: %s", c.cfg.SourceID, err)
	}
}

func (c *Client) backoff(failures int) {
	interval := c.cfg.ReconnectInterval << min(failures, maxBackoffShift)
	if failures == 0 {
		interval = c.cfg.ReconnectInterval
	}
	if interval > c.cfg.MaxReconnectInterval || interval <= 0 {
		interval = c.cfg.MaxReconnectInterval
	}
	c.limiter.SetLimit(rate.Every(interval))
}

func (c *Client) connect() (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	err = conn.WriteJSON(&Subscription{SourceID: c.cfg.SourceID, FromHeight: c.nextHeight})
	if err != nil {
		conn.Close()
		return nil, errors.WithStack(err)
	}

	c.connLock.Lock()
	defer c.connLock.Unlock()
	if c.ctx.Err() != nil {
		conn.Close()
		return nil, c.ctx.Err()
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) closeConn() {
	c.connLock.Lock()
	defer c.connLock.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// readLoop forwards records until the connection breaks. Replayed
// records are forwarded as well; the work set builder drops them.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		raw := &rover.RawRecord{}
		err := conn.ReadJSON(raw)
		if err != nil {
			return errors.WithStack(err)
		}
		if raw.SourceID != string(c.cfg.SourceID) {
			log.Warnf("Dropping a %q record from the %s feed", raw.SourceID, c.cfg.SourceID)
			continue
		}
		record, err := rover.Normalize(raw)
		if err != nil {
			log.Warnf("Dropping a malformed %s record: %s", c.cfg.SourceID, err)
			continue
		}
		if record.Height() >= c.nextHeight {
			c.nextHeight = record.Height()
		}

		select {
		case c.records <- record:
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}
