// Package collab runs shared customization sessions: every client connected
// to the same design sees the others' cursors and selections, and scene
// operations are applied to one authoritative engine per design.
package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/engine"
)

const (
	defaultCanvasSize = 800
	storeTimeout      = 10 * time.Second
)

// Loader returns the stored scene of a design, or nil for a new design.
type Loader func(ctx context.Context, designID string) (*document.Scene, error)

// Saver persists a design's scene.
type Saver func(ctx context.Context, designID string, s *document.Scene) error

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room         // designID -> room
	saves      map[string]chan struct{} // designID -> latest save in flight
	register   chan *Client
	unregister chan *Client
	opened     chan openResult
	quit       chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup

	load       Loader
	save       Saver
	engineOpts []engine.Option
	logger     *zap.Logger
}

type HubOption func(*Hub)

// WithLoader seeds new rooms. Without one rooms start from an empty canvas.
func WithLoader(l Loader) HubOption {
	return func(h *Hub) { h.load = l }
}

// WithSaver persists a room when its last client leaves and on shutdown.
func WithSaver(s Saver) HubOption {
	return func(h *Hub) { h.save = s }
}

func WithEngineOptions(opts ...engine.Option) HubOption {
	return func(h *Hub) { h.engineOpts = opts }
}

func WithLogger(l *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		saves:      make(map[string]chan struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		opened:     make(chan openResult),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations until ctx ends, then saves every changed room.
// Loads and saves run on their own goroutines so one slow design never
// holds up the others.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case res := <-h.opened:
			h.finishOpen(res)
		case <-ctx.Done():
			close(h.quit)
			h.saveAll()
			h.wg.Wait()
			return
		}
	}
}

// Done is closed once Run has returned and every room is saved.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Register adds client to its design's room. It returns false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Room returns the live room of a design. Rooms still loading are not live.
func (h *Hub) Room(designID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[designID]
	if !ok || !r.ready {
		return nil, false
	}
	return r, true
}

type openResult struct {
	room   *Room
	engine *engine.Engine
	err    error
}

// openRoom loads a design once any earlier save of it has finished.
func (h *Hub) openRoom(room *Room, after <-chan struct{}) {
	defer h.wg.Done()
	if after != nil {
		<-after
	}
	e, err := h.newEngine(room.designID)
	select {
	case h.opened <- openResult{room: room, engine: e, err: err}:
	case <-h.quit:
	}
}

func (h *Hub) newEngine(designID string) (*engine.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var scene *document.Scene
	if h.load != nil {
		s, err := h.load(ctx, designID)
		if err != nil {
			return nil, err
		}
		scene = s
	}
	e := engine.New(append([]engine.Option{engine.WithLogger(h.logger)}, h.engineOpts...)...)
	if err := e.Init(scene, defaultCanvasSize, defaultCanvasSize); err != nil {
		return nil, err
	}
	return e, nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DesignID]
	if !ok {
		room = NewRoom(client.DesignID, nil)
		h.rooms[client.DesignID] = room
		h.wg.Add(1)
		go h.openRoom(room, h.saves[client.DesignID])
	}
	room.clients[client.ClientID] = client
	ready := room.ready
	h.mu.Unlock()

	if ready {
		h.greet(room, client)
	}
}

// finishOpen makes a loaded room live and greets everyone who joined while
// it was loading.
func (h *Hub) finishOpen(res openResult) {
	h.mu.Lock()
	room := res.room
	if h.rooms[room.designID] != room {
		h.mu.Unlock()
		return
	}
	waiting := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		waiting = append(waiting, c)
	}
	if res.err != nil || len(waiting) == 0 {
		delete(h.rooms, room.designID)
		room.clients = make(map[string]*Client)
		h.mu.Unlock()
		if res.err != nil {
			h.logger.Error("open room", zap.String("design", room.designID), zap.Error(res.err))
		}
		for _, c := range waiting {
			c.Send(errorMessage("design unavailable"))
			c.close()
		}
		return
	}
	room.engine = res.engine
	room.ready = true
	h.mu.Unlock()

	for _, c := range waiting {
		h.greet(room, c)
	}
}

func (h *Hub) greet(room *Room, client *Client) {
	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, Payload: welcome})
	h.sendSync(room, client)
	if state, err := room.presence.StateMessage(); err == nil {
		client.Send(state)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(client.DesignID, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	h.logger.Info("client joined", zap.String("user", client.UserID), zap.String("design", client.DesignID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DesignID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.UserID)
	// A loading room with no clients left is dropped by finishOpen.
	if len(room.clients) == 0 && room.ready {
		delete(h.rooms, client.DesignID)
		h.saveLocked(room)
	}
	h.mu.Unlock()

	leavePayload, _ := json.Marshal(PresenceLeavePayload{UserID: client.UserID})
	h.broadcastToRoom(client.DesignID, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")

	h.logger.Info("client left", zap.String("user", client.UserID), zap.String("design", client.DesignID))
}

// saveLocked saves room in the background. Saves of one design run in the
// order they were started, and a reload of the design waits for the last.
func (h *Hub) saveLocked(room *Room) {
	if h.save == nil {
		return
	}
	prev := h.saves[room.designID]
	done := make(chan struct{})
	h.saves[room.designID] = done

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if prev != nil {
			<-prev
		}
		h.saveRoom(room)
		close(done)

		h.mu.Lock()
		if h.saves[room.designID] == done {
			delete(h.saves, room.designID)
		}
		h.mu.Unlock()
	}()
}

func (h *Hub) saveRoom(room *Room) {
	s, dirty := room.takeDirty()
	if !dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.save(ctx, room.designID, s); err != nil {
		room.markDirty()
		h.logger.Error("save design", zap.String("design", room.designID), zap.Error(err))
	}
}

func (h *Hub) saveAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		if r.ready {
			h.saveLocked(r)
		}
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOperation(sender, msg)
	case TypeDocSync:
		if room, ok := h.Room(sender.DesignID); ok {
			h.sendSync(room, sender)
		}
	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type), zap.String("user", sender.UserID))
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.logger.Warn("invalid presence payload", zap.Error(err))
		return
	}
	presence.DisplayName = sender.DisplayName

	room, ok := h.Room(sender.DesignID)
	if !ok {
		return
	}
	room.presence.Update(sender.UserID, &presence)

	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(sender.DesignID, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) handleOperation(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(errorMessage("invalid operation payload"))
		return
	}
	op := submit.Operation

	room, ok := h.Room(sender.DesignID)
	if !ok {
		return
	}
	seq, err := room.Apply(op)
	if err != nil {
		h.logger.Debug("operation rejected",
			zap.String("op", op.Type),
			zap.String("user", sender.UserID),
			zap.Error(err))
		nack, _ := json.Marshal(OperationNackPayload{OperationID: op.ID, Reason: err.Error()})
		sender.Send(&Message{Type: TypeOpNack, Payload: nack})
		return
	}

	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		ServerTimestamp: time.Now().UnixMilli(),
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: seq, Payload: ack})

	if resyncs(op) {
		h.mu.RLock()
		for _, c := range room.clients {
			h.sendSync(room, c)
		}
		h.mu.RUnlock()
		return
	}
	out, _ := json.Marshal(OperationBroadcastPayload{Operation: op, UserID: sender.UserID, ServerSeq: seq})
	h.broadcastToRoom(sender.DesignID, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     seq,
		Payload: out,
	}, sender.ClientID)
}

func (h *Hub) sendSync(room *Room, client *Client) {
	state, err := room.Sync()
	if err != nil {
		h.logger.Error("room snapshot", zap.String("design", room.designID), zap.Error(err))
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("marshal sync", zap.Error(err))
		return
	}
	client.Send(&Message{Type: TypeDocSync, Seq: state.ServerSeq, Payload: payload})
}

func (h *Hub) broadcastToRoom(designID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[designID]
	if !ok || !room.ready {
		return
	}
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			c.Send(msg)
		}
	}
}

func errorMessage(text string) *Message {
	payload, _ := json.Marshal(map[string]string{"error": text})
	return &Message{Type: TypeError, Payload: payload}
}
