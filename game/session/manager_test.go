package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
)

func createTestConfig() *engine.GameConfig {
	return &engine.GameConfig{
		ID:          "test",
		Name:        "Test Config",
		Description: "Test configuration",
		Rows:        4,
		Cols:        4,
		Players: []engine.Player{
			{ID: 1, Name: "Red", Color: "red"},
			{ID: 2, Name: "Green", Color: "green"},
		},
		Messages: engine.DefaultMessages(),
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Engine == nil {
			t.Error("Expected engine to be initialized")
		}
		if session.ConfigID != "test" {
			t.Errorf("Expected config ID 'test', got '%s'", session.ConfigID)
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character session ID, got %q", session.ID)
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", config)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", config)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("invalid ID", func(t *testing.T) {
		_, err := manager.Create("../escape", config)
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		invalidConfig := createTestConfig()
		invalidConfig.Name = "" // Make config invalid
		_, err := manager.Create("invalid-test", invalidConfig)
		if err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	created, _ := manager.Create("get-test", config)

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session != created {
			t.Errorf("Expected the created session back")
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		if err != nil {
			t.Fatalf("Failed to get session with different case: %v", err)
		}
		if session.ID != created.ID {
			t.Errorf("Expected same session regardless of case")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		if err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if !errors.Is(err, service.ErrSessionNotFound) {
			t.Error("Expected error to match service.ErrSessionNotFound")
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	first, err := manager.GetOrCreate("new-session", config)
	if err != nil {
		t.Fatalf("Failed to get or create session: %v", err)
	}
	if first.ID != "new-session" {
		t.Errorf("Expected session ID 'new-session', got '%s'", first.ID)
	}

	second, err := manager.GetOrCreate("new-session", config)
	if err != nil {
		t.Fatalf("Failed to get existing session: %v", err)
	}
	if second != first {
		t.Error("Expected the existing session to be returned")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	manager.Create("delete-test", config)

	t.Run("delete existing session", func(t *testing.T) {
		if err := manager.Delete("delete-test"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if _, err := manager.Get("delete-test"); err != ErrSessionNotFound {
			t.Error("Expected session to be deleted")
		}
	})

	t.Run("delete non-existent session", func(t *testing.T) {
		if err := manager.Delete("non-existent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		manager.Create("case-test", config)
		if err := manager.Delete("CASE-TEST"); err != nil {
			t.Fatalf("Failed to delete with different case: %v", err)
		}
		if _, err := manager.Get("case-test"); err != ErrSessionNotFound {
			t.Error("Expected session to be deleted regardless of case")
		}
	})

	t.Run("delete from memory", func(t *testing.T) {
		manager.Create("memory-test", config)
		if err := manager.DeleteFromMemory("memory-test"); err != nil {
			t.Fatalf("DeleteFromMemory failed: %v", err)
		}
		if err := manager.DeleteFromMemory("memory-test"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var created []string
	for _, id := range []string{"list-1", "list-2", "list-3"} {
		session, _ := manager.Create(id, config)
		created = append(created, session.ID)
		time.Sleep(time.Millisecond)
	}

	sessions := manager.List()
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	for i, s := range sessions {
		if s.ID != created[i] {
			t.Errorf("Position %d: expected %s, got %s", i, created[i], s.ID)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	active, _ := manager.Create("active", config)
	expired, _ := manager.Create("expired", config)

	// Simulate expired session
	expired.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	active.LastAccessedAt = time.Now()

	deleted := manager.CleanupExpiredSessions(1 * time.Hour)
	if deleted != 1 {
		t.Errorf("Expected 1 session to be deleted, got %d", deleted)
	}

	if _, err := manager.Get("expired"); err != ErrSessionNotFound {
		t.Error("Expected expired session to be deleted")
	}
	if _, err := manager.Get("active"); err != nil {
		t.Error("Expected active session to still exist")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	session, _ := manager.Create("access-test", config)
	originalTime := session.LastAccessedAt

	time.Sleep(10 * time.Millisecond)

	if err := manager.UpdateLastAccessed("ACCESS-TEST"); err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}

	updated, _ := manager.Get("access-test")
	if !updated.LastAccessedAt.After(originalTime) {
		t.Error("Expected LastAccessedAt to be updated")
	}

	if err := manager.UpdateLastAccessed("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_Exists(t *testing.T) {
	manager := NewManager()
	manager.Create("exists-test", createTestConfig())

	tests := []struct {
		id   string
		want bool
	}{
		{"exists-test", true},
		{"EXISTS-TEST", true},
		{"non-existent", false},
	}
	for _, tt := range tests {
		if got := manager.sessionExists(tt.id); got != tt.want {
			t.Errorf("sessionExists(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sessionID := strings.ToLower(generateRandomID())
			_, err := manager.Create(sessionID, config)
			if err != nil && err != ErrSessionAlreadyExists {
				errs <- err
			}
			manager.Get(sessionID)
			manager.UpdateLastAccessed(sessionID)
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}

	if len(manager.List()) == 0 {
		t.Error("Expected sessions to be created")
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	session1, _ := manager.Create("iso-1", config)
	session2, _ := manager.Create("iso-2", config)

	if outcome := session1.Engine.ApplyMove(0, 0, 1); !outcome.Accepted {
		t.Fatalf("Expected move to be accepted, got %s", outcome.Reason)
	}

	if session2.Engine.GetState().Board.TotalOrbs() != 0 {
		t.Error("Session 2 should not be affected by session 1 moves")
	}
	if session2.Engine.CurrentPlayer().ID != 1 {
		t.Error("Sessions should have independent turn state")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	generatedIDs := make(map[string]bool)

	for i := 0; i < 50; i++ {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if generatedIDs[session.ID] {
			t.Errorf("Duplicate session ID generated: %s", session.ID)
		}
		generatedIDs[session.ID] = true

		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %d", len(session.ID))
		}
	}
}

// Helper function to generate random ID for testing
func generateRandomID() string {
	return "test-" + time.Now().Format("150405")
}
