// Package p2pmesh is a libp2p-pubsub Transport adapter for local
// multi-daemon development without a central relay: one gossipsub topic
// carries every signed event, and FetchEventByID is answered by a small
// request/response protocol over a direct libp2p stream since pubsub alone
// has no concept of a point query.
package p2pmesh

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	corepro "github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

const (
	meshTopic        = "rhi-trade-listing-v1"
	fetchByIDProtoID = corepro.ID("/rhi/fetch-by-id/1.0.0")
	connectDeadline  = 10 * time.Second
)

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
		ID: w.ID, AuthorPubkey: w.Pubkey, CreatedAt: uint64(w.CreatedAt),
		Kind: transport.EventKind{Custom: uint16(w.Kind)}, Content: w.Content, Tags: w.Tags, Sig: w.Sig,
	}
}

// Config holds the local libp2p listen address, bootstrap peers, and logger.
type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

type localSub struct {
	id     string
	filter transport.Filter
	notify chan transport.Notification
}

// Client is a Transport backed by a single libp2p-pubsub mesh.
type Client struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	identity *identity.KeyPair

	mu        sync.Mutex
	subs      map[string]*localSub
	seen      map[string][]transport.SignedEvent // a small rolling cache, fed by the pubsub feed and by own sends; FetchEvents serves only from it, FetchEventByID consults it before asking peers
	ready     chan struct{}
	readyHit  bool
	bootstrap []string // multiaddrs queued by AddRelay before Connect runs
}

func New(id *identity.KeyPair, log *zap.SugaredLogger) *Client {
	return &Client{identity: id, log: log, subs: make(map[string]*localSub), seen: make(map[string][]transport.SignedEvent), ready: make(chan struct{})}
}

func (c *Client) AddRelay(addr string) error {
	c.bootstrap = append(c.bootstrap, addr)
	return nil
}

func (c *Client) Connect(ctx context.Context) error {
	var opts []libp2p.Option
	h, err := libp2p.New(opts...)
	if err != nil {
		return err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return err
	}
	c.h = h
	c.ps = ps

	for _, bs := range c.bootstrap {
		if err := c.connectMultiaddr(ctx, bs); err != nil && c.log != nil {
			c.log.Warnw("mesh_bootstrap_failed", "addr", bs, "err", err)
		}
	}

	topic, err := ps.Join(meshTopic)
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return err
	}
	c.topic = topic
	c.sub = sub

	h.SetStreamHandler(fetchByIDProtoID, c.handleFetchByID)

	go c.readLoop(ctx)

	c.mu.Lock()
	if !c.readyHit {
		c.readyHit = true
		close(c.ready)
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) connectMultiaddr(ctx context.Context, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return c.h.Connect(ctx, *info)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		msg, err := c.sub.Next(ctx)
		if err != nil {
			return
		}
		var we wireEvent
		if err := json.Unmarshal(msg.Data, &we); err != nil {
			continue
		}
		ev := we.toSigned()
		c.remember(ev)
		c.fanOut(ev)
	}
}

func (c *Client) remember(ev transport.SignedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%d", ev.Kind.Custom)
	list := c.seen[key]
	list = append(list, ev)
	if len(list) > 512 {
		list = list[len(list)-512:]
	}
	c.seen[key] = list
}

func (c *Client) fanOut(ev transport.SignedEvent) {
	c.mu.Lock()
	subs := make([]*localSub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		if !matches(s.filter, ev) {
			continue
		}
		evCopy := ev
		select {
		case s.notify <- transport.Notification{Event: &evCopy}:
		default:
		}
	}
}

func matches(f transport.Filter, ev transport.SignedEvent) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ev.Kind.Custom {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Authors) > 0 {
		found := false
		for _, a := range f.Authors {
			if a == ev.AuthorPubkey {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Identifier != "" {
		d, ok := ev.TagValue("d")
		if !ok || d != f.Identifier {
			return false
		}
	}
	if f.Since > 0 && ev.CreatedAt < f.Since {
		return false
	}
	return true
}

func (c *Client) Disconnect(ctx context.Context) error {
	if c.sub != nil {
		c.sub.Cancel()
	}
	if c.h != nil {
		return c.h.Close()
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
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Subscribe(ctx context.Context, filter transport.Filter, subID string) (*transport.Subscription, error) {
	if subID == "" {
		subID = randomID()
	}
	s := &localSub{id: subID, filter: filter, notify: make(chan transport.Notification, 64)}
	c.mu.Lock()
	c.subs[subID] = s
	c.mu.Unlock()
	return &transport.Subscription{ID: subID, Notify: s.notify}, nil
}

func (c *Client) Unsubscribe(subID string) {
	c.mu.Lock()
	delete(c.subs, subID)
	c.mu.Unlock()
}

func (c *Client) FetchEvents(ctx context.Context, filter transport.Filter) ([]transport.SignedEvent, error) {
	c.mu.Lock()
	var out []transport.SignedEvent
	for _, list := range c.seen {
		for _, ev := range list {
			if matches(filter, ev) {
				out = append(out, ev)
			}
		}
	}
	c.mu.Unlock()
	return out, nil
}

// FetchEventByID first checks the local cache, then asks every connected
// peer over the fetch-by-id stream protocol, returning the first hit.
func (c *Client) FetchEventByID(ctx context.Context, id string) (*transport.SignedEvent, error) {
	c.mu.Lock()
	for _, list := range c.seen {
		for _, ev := range list {
			if ev.ID == id {
				found := ev
				c.mu.Unlock()
				return &found, nil
			}
		}
	}
	c.mu.Unlock()

	if c.h == nil {
		return nil, nil
	}
	for _, p := range c.h.Network().Peers() {
		ev, err := c.requestFromPeer(ctx, p, id)
		if err == nil && ev != nil {
			return ev, nil
		}
	}
	return nil, nil
}

func (c *Client) requestFromPeer(ctx context.Context, p peer.ID, id string) (*transport.SignedEvent, error) {
	streamCtx, cancel := context.WithTimeout(ctx, connectDeadline)
	defer cancel()

	s, err := c.h.NewStream(streamCtx, p, fetchByIDProtoID)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if _, err := s.Write([]byte(id)); err != nil {
		return nil, err
	}
	_ = s.CloseWrite()

	data, err := io.ReadAll(s)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		return nil, err
	}
	ev := we.toSigned()
	return &ev, nil
}

func (c *Client) handleFetchByID(s network.Stream) {
	defer s.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, s); err != nil {
		return
	}
	id := buf.String()

	c.mu.Lock()
	var found *transport.SignedEvent
	for _, list := range c.seen {
		for _, ev := range list {
			if ev.ID == id {
				evCopy := ev
				found = &evCopy
				break
			}
		}
	}
	c.mu.Unlock()

	if found == nil {
		return
	}
	we := wireEvent{ID: found.ID, Pubkey: found.AuthorPubkey, CreatedAt: int64(found.CreatedAt), Kind: int(found.Kind.Custom), Tags: found.Tags, Content: found.Content, Sig: found.Sig}
	data, err := json.Marshal(we)
	if err != nil {
		return
	}
	_, _ = s.Write(data)
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
	preimage, err := json.Marshal([]any{0, c.identity.PublicKeyHex, createdAt, int(b.Kind), tags, b.Content})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(preimage)
	id := hex.EncodeToString(sum[:])

	sig, err := c.identity.Sign(sum[:])
	if err != nil {
		return "", err
	}

	we := wireEvent{ID: id, Pubkey: c.identity.PublicKeyHex, CreatedAt: createdAt, Kind: int(b.Kind), Tags: tags, Content: b.Content, Sig: hex.EncodeToString(sig)}
	data, err := json.Marshal(we)
	if err != nil {
		return "", err
	}
	if c.topic == nil {
		return "", fmt.Errorf("p2pmesh: not connected")
	}
	if err := c.topic.Publish(ctx, data); err != nil {
		return "", err
	}

	ev := we.toSigned()
	c.remember(ev)
	return id, nil
}

func randomID() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	return hex.EncodeToString(sum[:16])
}

var _ transport.Transport = (*Client)(nil)
