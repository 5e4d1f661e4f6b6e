package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans change payloads out to subscribers keyed by table name. A subscriber is
// attached to at most one table; registering it again moves it.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	tables    map[Subscriber]string
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
}

// message couples payload with table name.
type message struct {
	table   string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	table  string
	client Subscriber
}

type countRequest struct {
	table string
	reply chan int
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		tables:    make(map[Subscriber]string),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 64),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.tables {
				c.Close()
			}
			return
		case sub := <-h.register:
			if current, ok := h.tables[sub.client]; ok {
				h.detach(current, sub.client)
			}
			if _, ok := h.clients[sub.table]; !ok {
				h.clients[sub.table] = make(map[Subscriber]struct{})
			}
			h.clients[sub.table][sub.client] = struct{}{}
			h.tables[sub.client] = sub.table
		case sub := <-h.unreg:
			h.detach(sub.table, sub.client)
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.table]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						h.detach(msg.table, c)
					}
				}
			}
		case req := <-h.count:
			if req.table == "" {
				req.reply <- len(h.tables)
			} else {
				req.reply <- len(h.clients[req.table])
			}
		}
	}
}

func (h *Hub) detach(table string, client Subscriber) {
	if clients, ok := h.clients[table]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, table)
		}
	}
	if h.tables[client] == table {
		delete(h.tables, client)
	}
}

// Register attaches a client to a table stream.
func (h *Hub) Register(table string, client Subscriber) {
	select {
	case h.register <- subscription{table: table, client: client}:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(table string, client Subscriber) {
	select {
	case h.unreg <- subscription{table: table, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to all subscribers of table.
func (h *Hub) Broadcast(table string, payload []byte) {
	select {
	case h.broadcast <- message{table: table, payload: payload}:
	case <-h.done:
	}
}

// Subscribers reports how many clients follow table, or all clients when table is empty.
func (h *Hub) Subscribers(table string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{table: table, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Stop closes every subscriber and ends the run loop.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
