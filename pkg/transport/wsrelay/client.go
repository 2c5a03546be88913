// Package wsrelay is a gorilla/websocket Transport adapter that multiplexes
// one logical client over one or more relay connections: instead of a
// server fanning a broadcast out to many inbound clients, one daemon fans
// REQ/EVENT/CLOSE frames out to many outbound relay connections and merges
// their notifications back in.
package wsrelay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	dialTimeout    = 10 * time.Second
	fetchDrainWait = 5 * time.Second
)

// wireEvent is the over-the-wire event representation, framed the way
// nostr relays frame events: ["EVENT", <wireEvent>].
type wireEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

func (w wireEvent) toSigned() transport.SignedEvent {
	return transport.SignedEvent{
		ID:           w.ID,
		AuthorPubkey: w.Pubkey,
		CreatedAt:    uint64(w.CreatedAt),
		Kind:         transport.EventKind{Custom: uint16(w.Kind)},
		Content:      w.Content,
		Tags:         w.Tags,
		Sig:          w.Sig,
	}
}

type wireFilter struct {
	IDs     []string `json:"ids,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Tags    map[string][]string
	Since   int64 `json:"since,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}

func (f wireFilter) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	for k, v := range f.Tags {
		m["#"+k] = v
	}
	if f.Since > 0 {
		m["since"] = f.Since
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

func filterFromIdentifier(id string) map[string][]string {
	if id == "" {
		return nil
	}
	return map[string][]string{"d": {id}}
}

func toWireFilter(f transport.Filter) wireFilter {
	wf := wireFilter{Authors: f.Authors, Since: int64(f.Since), Limit: f.Limit, Tags: filterFromIdentifier(f.Identifier)}
	wf.Kinds = make([]int, len(f.Kinds))
	for i, k := range f.Kinds {
		wf.Kinds[i] = int(k)
	}
	return wf
}

// relayConn is one outbound connection to one relay URL, with its own
// write queue so writePump is the sole writer on the socket.
type relayConn struct {
	url  string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// subscription tracks one logical Subscribe() call's merged notifications
// and, for one-shot FetchEvents, the accumulated results.
type subscription struct {
	id     string
	notify chan transport.Notification
	events chan transport.SignedEvent
	eose   chan struct{}
	once   sync.Once
}

// Client is a Transport backed by one or more relay websocket connections.
type Client struct {
	identity *identity.KeyPair
	log      *zap.SugaredLogger

	mu              sync.Mutex
	relays          []string
	conns           map[string]*relayConn
	subs            map[string]*subscription
	connected       chan struct{}
	closedConnected bool
}

func New(id *identity.KeyPair, log *zap.SugaredLogger) *Client {
	return &Client{
		identity:  id,
		log:       log,
		conns:     make(map[string]*relayConn),
		subs:      make(map[string]*subscription),
		connected: make(chan struct{}),
	}
}

func (c *Client) AddRelay(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.relays {
		if r == url {
			return nil
		}
	}
	c.relays = append(c.relays, url)
	return nil
}

// Connect dials every configured relay concurrently and returns once every
// dial has finished; one successful dial is enough to satisfy
// WaitForConnection. A relay whose dial fails, or whose read pump later
// exits, is not redialled by the client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	relays := append([]string(nil), c.relays...)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, url := range relays {
		url := url
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.dialOne(ctx, url)
		}()
	}
	wg.Wait()
	return nil
}

func (c *Client) dialOne(ctx context.Context, url string) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if c.log != nil {
			c.log.Warnw("relay_dial_failed", "relay", url, "err", err)
		}
		return
	}

	rc := &relayConn{url: url, conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}

	c.mu.Lock()
	c.conns[url] = rc
	if !c.closedConnected {
		c.closedConnected = true
		close(c.connected)
	}
	c.mu.Unlock()

	go c.writePump(rc)
	go c.readPump(rc)
}

func (c *Client) writePump(rc *relayConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		rc.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-rc.send:
			rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				rc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := rc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-rc.done:
			return
		}
	}
}

func (c *Client) readPump(rc *relayConn) {
	defer func() {
		close(rc.done)
		rc.conn.Close()
		c.mu.Lock()
		delete(c.conns, rc.url)
		c.mu.Unlock()
	}()

	rc.conn.SetReadDeadline(time.Now().Add(pongWait))
	rc.conn.SetPongHandler(func(string) error {
		rc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := rc.conn.ReadMessage()
		if err != nil {
			return
		}
		c.dispatchFrame(raw)
	}
}

func (c *Client) dispatchFrame(raw []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
		return
	}
	var kind string
	if err := json.Unmarshal(frame[0], &kind); err != nil {
		return
	}

	switch kind {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		var we wireEvent
		if err := json.Unmarshal(frame[2], &we); err != nil {
			return
		}
		c.routeEvent(subID, we.toSigned())
	case "EOSE":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.routeEOSE(subID)
	case "CLOSED":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.routeClosed(subID)
	}
}

func (c *Client) routeEvent(subID string, ev transport.SignedEvent) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	c.mu.Unlock()
	if !ok {
		return
	}
	if sub.events != nil {
		select {
		case sub.events <- ev:
		default:
		}
	}
	if sub.notify != nil {
		evCopy := ev
		select {
		case sub.notify <- transport.Notification{Event: &evCopy}:
		default:
		}
	}
}

func (c *Client) routeEOSE(subID string) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	c.mu.Unlock()
	if ok && sub.eose != nil {
		sub.once.Do(func() { close(sub.eose) })
	}
}

func (c *Client) routeClosed(subID string) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if ok && sub.notify != nil {
		select {
		case sub.notify <- transport.Notification{Closed: true}:
		default:
		}
	}
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.conns))
	for _, rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()
	for _, rc := range conns {
		close(rc.send)
	}
	return nil
}

func (c *Client) UnsubscribeAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.Unsubscribe(id)
	}
}

func (c *Client) WaitForConnection(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Subscribe(ctx context.Context, filter transport.Filter, subID string) (*transport.Subscription, error) {
	if subID == "" {
		subID = randomID()
	}
	sub := &subscription{id: subID, notify: make(chan transport.Notification, 64)}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()

	c.broadcastREQ(subID, filter)
	return &transport.Subscription{ID: subID, Notify: sub.notify}, nil
}

func (c *Client) Unsubscribe(subID string) {
	c.mu.Lock()
	_, ok := c.subs[subID]
	delete(c.subs, subID)
	conns := make([]*relayConn, 0, len(c.conns))
	for _, rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	frame, _ := json.Marshal([]any{"CLOSE", subID})
	for _, rc := range conns {
		select {
		case rc.send <- frame:
		default:
		}
	}
}

func (c *Client) broadcastREQ(subID string, filter transport.Filter) {
	frame, _ := json.Marshal([]any{"REQ", subID, toWireFilter(filter)})
	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.conns))
	for _, rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()
	for _, rc := range conns {
		select {
		case rc.send <- frame:
		default:
		}
	}
}

// FetchEvents runs a one-shot subscription, collecting events until EOSE
// (or ctx/timeout) and then closing it.
func (c *Client) FetchEvents(ctx context.Context, filter transport.Filter) ([]transport.SignedEvent, error) {
	subID := randomID()
	sub := &subscription{id: subID, events: make(chan transport.SignedEvent, 256), eose: make(chan struct{})}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()
	defer c.Unsubscribe(subID)

	c.broadcastREQ(subID, filter)

	deadline := time.NewTimer(fetchDrainWait)
	defer deadline.Stop()

	var results []transport.SignedEvent
	for {
		select {
		case ev := <-sub.events:
			results = append(results, ev)
		case <-sub.eose:
			return drain(results, sub.events), nil
		case <-deadline.C:
			return drain(results, sub.events), nil
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}
}

func drain(results []transport.SignedEvent, ch chan transport.SignedEvent) []transport.SignedEvent {
	for {
		select {
		case ev := <-ch:
			results = append(results, ev)
		default:
			return results
		}
	}
}

func (c *Client) FetchEventByID(ctx context.Context, id string) (*transport.SignedEvent, error) {
	subID := randomID()
	sub := &subscription{id: subID, events: make(chan transport.SignedEvent, 4), eose: make(chan struct{})}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()
	defer c.Unsubscribe(subID)

	frame, _ := json.Marshal([]any{"REQ", subID, wireFilter{IDs: []string{id}}})
	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.conns))
	for _, rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()
	for _, rc := range conns {
		select {
		case rc.send <- frame:
		default:
		}
	}

	select {
	case ev := <-sub.events:
		return &ev, nil
	case <-sub.eose:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) BuildEvent(kind uint16, content string, tags [][]string) transport.EventBuilder {
	return transport.EventBuilder{Kind: kind, Content: content, Tags: tags}
}

const jobFeedbackKind = 7000

func (c *Client) BuildJobFeedback(ref transport.SignedEvent, status transport.JobFeedbackStatus, info string) transport.EventBuilder {
	tags := [][]string{{"e", ref.ID}, {"p", ref.AuthorPubkey}, {"status", string(status)}}
	return transport.EventBuilder{Kind: jobFeedbackKind, Content: info, Tags: tags}
}

func (c *Client) SendEventBuilder(ctx context.Context, b transport.EventBuilder) (string, error) {
	createdAt := time.Now().Unix()
	tags := b.Tags
	if tags == nil {
		tags = [][]string{}
	}

	serialized, err := canonicalEventJSON(c.identity.PublicKeyHex, createdAt, int(b.Kind), tags, b.Content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(serialized)
	id := hex.EncodeToString(sum[:])

	sig, err := c.identity.Sign(sum[:])
	if err != nil {
		return "", err
	}

	we := wireEvent{
		ID:        id,
		Pubkey:    c.identity.PublicKeyHex,
		CreatedAt: createdAt,
		Kind:      int(b.Kind),
		Tags:      tags,
		Content:   b.Content,
		Sig:       hex.EncodeToString(sig),
	}
	frame, err := json.Marshal([]any{"EVENT", we})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.conns))
	for _, rc := range c.conns {
		conns = append(conns, rc)
	}
	c.mu.Unlock()
	if len(conns) == 0 {
		return "", fmt.Errorf("wsrelay: no connected relays")
	}
	for _, rc := range conns {
		select {
		case rc.send <- frame:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return id, nil
}

// canonicalEventJSON reproduces the NIP-01 id-preimage array
// [0, pubkey, created_at, kind, tags, content] serialized with Go's
// deterministic map-free json.Marshal (struct/array encoding has stable
// field order, unlike map encoding).
func canonicalEventJSON(pubkey string, createdAt int64, kind int, tags [][]string, content string) ([]byte, error) {
	arr := []any{0, pubkey, createdAt, kind, tags, content}
	return json.Marshal(arr)
}

func randomID() string {
	var b [16]byte
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	copy(b[:], sum[:16])
	return hex.EncodeToString(b[:])
}

var _ transport.Transport = (*Client)(nil)
