package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewDependencies_InMemory(t *testing.T) {
	logger := log.WithField("test", "dependencies")

	deps, err := NewDependencies(context.Background(), Config{}, logger)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Store != nil {
		t.Error("expected nil postgres store for empty dsn")
	}
	if deps.Carts == nil {
		t.Error("expected cart repository to be initialized")
	}
	if deps.Payments == nil {
		t.Error("expected payment repository to be initialized")
	}
	if deps.Products == nil {
		t.Error("expected product repository to be initialized")
	}
	if deps.Reviews == nil {
		t.Error("expected review repository to be initialized")
	}
	if deps.Messages == nil {
		t.Error("expected message repository to be initialized")
	}
	if deps.Timeline == nil {
		t.Error("expected timeline repository to be initialized")
	}
	if deps.Outbox == nil {
		t.Error("expected outbox repository to be initialized")
	}
	if deps.Idempotency == nil {
		t.Error("expected idempotency repository to be initialized")
	}
	if deps.Cache == nil {
		t.Error("expected cache to be initialized")
	}
}

func TestNewDependencies_NilLogger(t *testing.T) {
	deps, err := NewDependencies(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Logger == nil {
		t.Error("expected fallback logger")
	}
}

func TestDependencies_CloseWithoutClosers(t *testing.T) {
	deps := &Dependencies{Logger: log.WithField("test", "dependencies")}

	// Не должно паниковать
	deps.Close()
}
