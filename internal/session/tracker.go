package session

import (
	"sync"

	"github.com/verdora/storefront/internal/domain"
)

// Tracker хранит идентификатор пользователя текущей сессии и рассылает
// уведомления о входе и выходе. Пустой идентификатор означает гостя.
type Tracker struct {
	mu     sync.RWMutex
	userID string

	nextSubID int
	subs      map[int]func(userID string)
}

var _ domain.SessionProvider = (*Tracker)(nil)

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]func(userID string))}
}

func (t *Tracker) CurrentUserID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userID
}

// SignIn переключает сессию на пользователя. Повторный вход тем же
// пользователем уведомлений не порождает.
func (t *Tracker) SignIn(userID string) {
	t.setUser(userID)
}

// SignOut сбрасывает сессию в гостевую.
func (t *Tracker) SignOut() {
	t.setUser("")
}

func (t *Tracker) setUser(userID string) {
	t.mu.Lock()
	if t.userID == userID {
		t.mu.Unlock()
		return
	}
	t.userID = userID

	fns := make([]func(userID string), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	// Обработчики вызываются синхронно, вне блокировки: подписчик вправе
	// обратиться к трекеру из своего обработчика.
	for _, fn := range fns {
		fn(userID)
	}
}

func (t *Tracker) Subscribe(fn func(userID string)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}
