package dfplayer

import "sync"

// Handler 消息处理器
type Handler func(m Message) error

// Table 路由表（cmd -> handler），未注册的命令码走 fallback
type Table struct {
	mu       sync.RWMutex
	handlers map[Code]Handler
	fallback Handler
}

func NewTable() *Table { return &Table{handlers: make(map[Code]Handler)} }

func (t *Table) Register(code Code, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[code] = h
}

// SetFallback 设置未注册命令码的处理器
func (t *Table) SetFallback(h Handler) {
	t.mu.Lock()
	t.fallback = h
	t.mu.Unlock()
}

func (t *Table) Route(m Message) error {
	t.mu.RLock()
	h, ok := t.handlers[m.Code]
	if !ok {
		h = t.fallback
	}
	t.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(m)
}
