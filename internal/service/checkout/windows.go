package checkout

import (
	"net/url"
	"sync"

	"github.com/verdora/storefront/internal/domain"
)

// CallbackWindows — реализация WindowOpener для HTTP-модели: «окно»
// оплаты считается закрытым, когда шлюз вернул пользователя на
// callback-endpoint магазина. Ключом служит идентификатор платёжной
// сессии из redirect URL (query-параметр pidx), при его отсутствии —
// сам URL.
type CallbackWindows struct {
	mu      sync.Mutex
	windows map[string]*callbackWindow
}

var _ domain.WindowOpener = (*CallbackWindows)(nil)

// NewCallbackWindows создаёт реестр платёжных окон.
func NewCallbackWindows() *CallbackWindows {
	return &CallbackWindows{windows: make(map[string]*callbackWindow)}
}

// Open регистрирует окно для redirect URL.
func (c *CallbackWindows) Open(rawURL string) (domain.PaymentWindow, error) {
	key := windowKey(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	w := &callbackWindow{registry: c, key: key}
	c.windows[key] = w
	return w, nil
}

// Complete помечает окно сессии закрытым. Возвращает false, если окно
// для такой сессии не открыто.
func (c *CallbackWindows) Complete(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[sessionID]
	if !ok {
		return false
	}
	w.markClosed()
	delete(c.windows, sessionID)
	return true
}

func (c *CallbackWindows) drop(key string) {
	c.mu.Lock()
	delete(c.windows, key)
	c.mu.Unlock()
}

func windowKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if pidx := u.Query().Get("pidx"); pidx != "" {
		return pidx
	}
	return rawURL
}

type callbackWindow struct {
	registry *CallbackWindows
	key      string

	mu     sync.Mutex
	closed bool
}

func (w *callbackWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *callbackWindow) Close() {
	w.markClosed()
	w.registry.drop(w.key)
}

func (w *callbackWindow) markClosed() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
