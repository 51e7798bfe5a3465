package repository

import (
	"io"
	"log/slog"
	"testing"

	"FacilityBot/internal/config"
)

func TestNewMongoClientDisabled(t *testing.T) {
	conf := &config.Config{}
	db, err := NewMongoClient(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil || db != nil {
		t.Fatalf("disabled mongo should yield nil client, got %v, %v", db, err)
	}
}

func TestNewMongoClientCredentials(t *testing.T) {
	conf := &config.Config{}
	conf.Mongo.Enabled = true
	conf.Mongo.Host = "db"
	conf.Mongo.Port = "27017"
	conf.Mongo.User = "bot"
	conf.Mongo.Database = "facility"

	db, err := NewMongoClient(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil || db == nil {
		t.Fatalf("NewMongoClient: %v", err)
	}
	if db.clientOptions.Auth == nil || db.clientOptions.Auth.AuthSource != "facility" {
		t.Errorf("credentials not applied: %+v", db.clientOptions.Auth)
	}
	if db.database != "facility" {
		t.Errorf("database = %q", db.database)
	}
}
