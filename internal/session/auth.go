package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/verdora/storefront/internal/domain"
)

// TokenAuth — авторизация по bearer-токенам, выданным через Issue.
// Токены живут в памяти процесса; внешний identity-провайдер подключается
// собственной реализацией domain.AuthService.
type TokenAuth struct {
	mu     sync.RWMutex
	tokens map[string]string
	admins map[string]struct{}
}

var _ domain.AuthService = (*TokenAuth)(nil)

func NewTokenAuth() *TokenAuth {
	return &TokenAuth{
		tokens: make(map[string]string),
		admins: make(map[string]struct{}),
	}
}

// Issue выдаёт новый токен для пользователя.
func (a *TokenAuth) Issue(userID string) string {
	token := uuid.NewString()
	a.mu.Lock()
	a.tokens[token] = userID
	a.mu.Unlock()
	return token
}

// Register привязывает заранее известный токен к пользователю. Используется
// для статических токенов из конфигурации.
func (a *TokenAuth) Register(token, userID string) {
	if token == "" || userID == "" {
		return
	}
	a.mu.Lock()
	a.tokens[token] = userID
	a.mu.Unlock()
}

// Revoke отзывает токен. Отзыв неизвестного токена не является ошибкой.
func (a *TokenAuth) Revoke(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
	return nil
}

// GrantAdmin помечает пользователя администратором.
func (a *TokenAuth) GrantAdmin(userID string) {
	a.mu.Lock()
	a.admins[userID] = struct{}{}
	a.mu.Unlock()
}

func (a *TokenAuth) UserIDFromToken(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.RLock()
	userID, ok := a.tokens[token]
	a.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown token: %w", domain.ErrAuthRequired)
	}
	return userID, nil
}

func (a *TokenAuth) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.RLock()
	_, ok := a.admins[userID]
	a.mu.RUnlock()
	return ok, nil
}
