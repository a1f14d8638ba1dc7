package connection

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go-substrate-client/internal/messages"
	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const subscriptionBuffer = 64

var ErrClosed = errors.New("connection: closed")

type (
	// WsClient multiplexes JSON-RPC calls and subscriptions over one websocket
	WsClient struct {
		endpoint string
		prefix   types.SS58Prefix
		conn     *websocket.Conn

		writeMu sync.Mutex
		lastId  int64
		callers sync.Map // request id -> *pending
		subs    sync.Map // subscription id -> func(json.RawMessage)

		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
		errMu  sync.Mutex
		err    error
	}

	pending struct {
		method string
		answer chan *response
		// onSubscribed runs on the read loop before any later message is
		// handled, so no notification can overtake its registration
		onSubscribed func(subscription string)
	}

	request struct {
		Id      int           `json:"id"`
		JsonRpc string        `json:"jsonrpc"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params"`
	}

	response struct {
		Id     *int            `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *errorObject    `json:"error"`
		Method string          `json:"method"`
		Params *notification   `json:"params"`

		raw []byte
	}

	// errorObject accepts any JSON as data; nodes send strings or objects
	errorObject struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	notification struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}
)

// Dial connects to the node's websocket endpoint. prefix is used to format
// account ids for calls that take an address.
func Dial(ctx context.Context, endpoint string, prefix types.SS58Prefix) (*WsClient, error) {
	messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CONNECTION_DIALING, endpoint).ConsoleLog()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, messages.NewMessage(messages.LOG_LEVEL_ERROR, messages.GetComponent(Dial), err, messages.CONNECTION_FAILED_TO_DIAL, endpoint).Err()
	}

	c := &WsClient{
		endpoint: endpoint,
		prefix:   prefix,
		conn:     conn,
		done:     make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.readMessages()

	messages.NewMessage(messages.LOG_LEVEL_SUCCESS, "", nil, messages.CONNECTION_DIALED).ConsoleLog()
	return c, nil
}

func (e *errorObject) toError() *rpc.Error {
	err := &rpc.Error{Code: e.Code, Message: e.Message}
	if len(e.Data) > 0 && string(e.Data) != "null" {
		if jsonErr := json.Unmarshal(e.Data, &err.Data); jsonErr != nil {
			err.Data = string(e.Data)
		}
	}
	return err
}

// Close ends the connection. Pending calls fail and open subscriptions end
// with ErrClosed.
func (c *WsClient) Close() error {
	c.fail(ErrClosed)
	err := c.conn.Close()
	<-c.done
	if err != nil {
		messages.NewMessage(messages.LOG_LEVEL_WARNING, "", err, messages.CONNECTION_FAILED_TO_CLOSE).ConsoleLog()
	}
	return err
}

// Done is closed once the read loop stopped
func (c *WsClient) Done() <-chan struct{} {
	return c.done
}

func (c *WsClient) nextId() int {
	return int(atomic.AddInt64(&c.lastId, 1))
}

func (c *WsClient) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// fail records the first cause the connection stopped for
func (c *WsClient) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.cancel()
}

func (c *WsClient) readMessages() {
	defer c.shutdown()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.closeErr() == nil {
				messages.NewMessage(messages.LOG_LEVEL_ERROR, "", err, messages.CONNECTION_READ_FAILED).ConsoleLog()
			}
			c.fail(err)
			return
		}

		resp := &response{raw: raw}
		if err := json.Unmarshal(raw, resp); err != nil {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, "", err, messages.CONNECTION_FAILED_TO_DECODE).ConsoleLog()
			continue
		}
		c.dispatch(resp)
	}
}

func (c *WsClient) dispatch(resp *response) {
	if resp.Id == nil {
		if resp.Params == nil {
			return
		}
		handler, ok := c.subs.Load(resp.Params.Subscription)
		if !ok {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, "", nil, messages.CONNECTION_UNKNOWN_MESSAGE, resp.Params.Subscription).ConsoleLog()
			return
		}
		handler.(func(json.RawMessage))(resp.Params.Result)
		return
	}

	v, ok := c.callers.LoadAndDelete(*resp.Id)
	if !ok {
		return
	}
	p := v.(*pending)
	if p.onSubscribed != nil && resp.Error == nil {
		var id string
		if err := json.Unmarshal(resp.Result, &id); err == nil {
			p.onSubscribed(id)
		}
	}
	p.answer <- resp
}

// shutdown ends every pending call and subscription with the close cause
func (c *WsClient) shutdown() {
	c.callers.Range(func(k, v interface{}) bool {
		c.callers.Delete(k)
		close(v.(*pending).answer)
		return true
	})
	c.subs.Range(func(k, v interface{}) bool {
		c.subs.Delete(k)
		v.(func(json.RawMessage))(nil)
		return true
	})
	close(c.done)
}

// send writes msg, which must carry request id, and waits for its answer
func (c *WsClient) send(ctx context.Context, id int, method string, msg []byte, onSubscribed func(string)) (*response, error) {
	p := &pending{method: method, answer: make(chan *response, 1), onSubscribed: onSubscribed}
	c.callers.Store(id, p)

	select {
	case <-c.done:
		c.callers.Delete(id)
		return nil, &rpc.TransportError{Method: method, Err: c.closeErr()}
	default:
	}

	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.TextMessage, msg)
	c.writeMu.Unlock()
	if err != nil {
		c.callers.Delete(id)
		return nil, &rpc.TransportError{Method: method, Err: err}
	}

	select {
	case resp, ok := <-p.answer:
		if !ok {
			return nil, &rpc.TransportError{Method: method, Err: c.closeErr()}
		}
		if resp.Error != nil {
			return nil, resp.Error.toError()
		}
		return resp, nil
	case <-c.done:
		return nil, &rpc.TransportError{Method: method, Err: c.closeErr()}
	case <-ctx.Done():
		// a late subscription id still reaches onSubscribed, which releases it
		if onSubscribed == nil {
			c.callers.Delete(id)
		}
		return nil, ctx.Err()
	}
}

// call issues method with params built by the connection
func (c *WsClient) call(ctx context.Context, method string, params ...interface{}) (*response, error) {
	return c.callWith(ctx, method, nil, params...)
}

func (c *WsClient) callWith(ctx context.Context, method string, onSubscribed func(string), params ...interface{}) (*response, error) {
	if params == nil {
		params = []interface{}{}
	}
	id := c.nextId()
	msg, err := json.Marshal(request{Id: id, JsonRpc: "2.0", Method: method, Params: params})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", method)
	}
	return c.send(ctx, id, method, msg, onSubscribed)
}

// subscribe opens a subscription whose notifications decode into T. The
// handler is registered before the read loop looks at the next message.
func subscribe[T any](ctx context.Context, c *WsClient, method, unsubscribe string, decode func(json.RawMessage) (T, error), params ...interface{}) (*rpc.Subscription[T], error) {
	var (
		sub       *rpc.Subscription[T]
		mu        sync.Mutex
		subId     string
		abandoned bool
	)
	unsubscribeId := func(id string) error {
		c.subs.Delete(id)
		if _, err := c.call(context.Background(), unsubscribe, id); err != nil {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, "", err, messages.CONNECTION_FAILED_UNSUBSCRIBE, method).ConsoleLog()
			return err
		}
		return nil
	}
	sub = rpc.NewSubscription[T](subscriptionBuffer, func() error {
		mu.Lock()
		id := subId
		mu.Unlock()
		return unsubscribeId(id)
	})

	onSubscribed := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			// the caller gave up before the node answered
			go unsubscribeId(id)
			return
		}
		subId = id
		c.subs.Store(id, func(raw json.RawMessage) {
			if raw == nil {
				sub.Close(&rpc.TransportError{Method: method, Err: c.closeErr()})
				return
			}
			v, err := decode(raw)
			if err != nil {
				c.subs.Delete(id)
				sub.Close(errors.Wrapf(err, "decode %s notification", method))
				go unsubscribeId(id)
				return
			}
			// a full buffer holds back the read loop until the consumer catches up
			if err := sub.Send(c.ctx, v); err != nil && !errors.Is(err, rpc.ErrSubscriptionClosed) {
				sub.Close(&rpc.TransportError{Method: method, Err: err})
			}
		})
	}

	if _, err := c.callWith(ctx, method, onSubscribed, params...); err != nil {
		mu.Lock()
		abandoned = true
		id := subId
		mu.Unlock()
		if id != "" {
			go unsubscribeId(id)
		}
		return nil, err
	}
	return sub, nil
}
