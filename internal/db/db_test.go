package db

import (
	"testing"

	"github.com/arenalab/arena/internal/config"
	"github.com/arenalab/arena/internal/models"
)

func TestDSN(t *testing.T) {
	cfg := config.DBConfig{Host: "10.0.0.5", Port: 3307, User: "arena", Password: "secret", Database: "arena_prod"}
	got := DSN(cfg)
	want := "arena:secret@tcp(10.0.0.5:3307)/arena_prod?parseTime=true&charset=utf8mb4"
	if got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestDSN_DefaultsToRoot(t *testing.T) {
	cfg := config.DBConfig{Host: "127.0.0.1", Port: 3306, Database: "arena"}
	got := DSN(cfg)
	want := "root@tcp(127.0.0.1:3306)/arena?parseTime=true&charset=utf8mb4"
	if got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	if _, err := Connect(config.DBConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db, err := ConnectMemory()
	if err != nil {
		t.Fatalf("ConnectMemory() error = %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	db, err := ConnectMemory()
	if err != nil {
		t.Fatalf("ConnectMemory() error = %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	sess := models.ArchivedSession{
		SessionID: "srv-1",
		TaskID:    "task-1",
		Title:     "why is the sky blue",
		Question:  "why is the sky blue?",
		Answers: []models.ArchivedAnswer{
			{AnswerID: "a", ProviderID: "A", Content: "scattering"},
			{AnswerID: "b", ProviderID: "B", Err: "stream failed"},
		},
	}
	if err := db.Create(&sess).Error; err != nil {
		t.Fatalf("create archived session: %v", err)
	}

	var loaded models.ArchivedSession
	if err := db.Preload("Answers").Where("session_id = ?", "srv-1").First(&loaded).Error; err != nil {
		t.Fatalf("load archived session: %v", err)
	}
	if len(loaded.Answers) != 2 {
		t.Fatalf("len(Answers) = %d, want 2", len(loaded.Answers))
	}
	if loaded.Answers[1].Err != "stream failed" {
		t.Errorf("Answers[1].Err = %q, want %q", loaded.Answers[1].Err, "stream failed")
	}
}
