package wsfeed

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

type (
	// transport is one live socket session. readFrame blocks until a frame
	// arrives or the session dies; the returned error classifies the
	// closure (ErrNormalClosure vs anything else).
	transport interface {
		readFrame() ([]byte, error)
		writeFrame(data []byte) error
		// close tears the session down. When normal is true a close frame
		// with the normal status code is sent first so the peer does not
		// treat it as an abnormal drop.
		close(normal bool)
	}

	// Dialer establishes a transport session against the endpoint
	// described by params.
	Dialer func(ctx context.Context, params DialParams) (transport, error)

	// DialParams carries everything needed to open one session.
	DialParams struct {
		URL    url.URL
		Header http.Header
	}

	// DialParamsGetter produces DialParams on demand. The indirection
	// exists for deployments whose endpoint or headers rotate (signed
	// tickets, refreshed tokens); static setups use a closure over a
	// fixed value.
	DialParamsGetter func(ctx context.Context) (DialParams, error)

	// DialParamsRepo wraps a getter with logging.
	DialParamsRepo struct {
		logger logger
		getter DialParamsGetter
	}
)

func (r DialParamsRepo) Get(ctx context.Context) (params DialParams, err error) {
	params, err = r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch dial params: %s", err)
	}
	return
}

func NewDialParamsRepo(logger logger, getter DialParamsGetter) DialParamsRepo {
	return DialParamsRepo{getter: getter, logger: logger}
}

// Endpoint derives the session URL for a channel: ws(s)://host/ws/<channel>.
// An empty channel falls back to DefaultChannel.
func Endpoint(host string, secure bool, channel string) url.URL {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return url.URL{Scheme: scheme, Host: host, Path: "/ws/" + channel}
}

// wsTransport is the production transport over fasthttp/websocket.
type wsTransport struct {
	conn *websocket.Conn
}

const writeTimeout = time.Second

func (t *wsTransport) readFrame() ([]byte, error) {
	_, bts, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, ErrNormalClosure
		}
		return nil, errors.Wrap(ErrConnectionClosed, err.Error())
	}
	return bts, nil
}

func (t *wsTransport) writeFrame(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(ErrConnectionClosed, err.Error())
	}
	return nil
}

func (t *wsTransport) close(normal bool) {
	if normal {
		deadline := time.Now().Add(writeTimeout)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
	}
	_ = t.conn.Close()
}

// NewWebsocketDialer builds the default Dialer. A nil dialer uses
// websocket.DefaultDialer.
func NewWebsocketDialer(wsDialer *websocket.Dialer, logger logger) Dialer {
	if wsDialer == nil {
		wsDialer = websocket.DefaultDialer
	}
	log := logger.WithField("net", "ws_transport")

	return func(ctx context.Context, params DialParams) (transport, error) {
		conn, resp, err := wsDialer.DialContext(ctx, params.URL.String(), params.Header)
		if err != nil {
			log.Errorf("connection err to %s: %s", params.URL.String(), err)
			return nil, wrapDialError(resp, err)
		}

		log.Debugf("success opening connection to %s", params.URL.String())

		return &wsTransport{conn: conn}, nil
	}
}

func wrapDialError(resp *http.Response, err error) error {
	var msg string
	if resp != nil && resp.Body != nil {
		if bts, rerr := io.ReadAll(resp.Body); rerr == nil && len(bts) > 0 {
			msg = ": " + string(bts)
		}
	}
	return errors.Wrap(ErrCannotConnect, err.Error()+msg)
}
