package models

import (
	"fmt"
	"testing"

	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// WithType sets the type of an actor.
func WithType(t ActorType) func(*Actor) {
	return func(a *Actor) {
		a.Type = t
	}
}

// MockActor creates a new actor in the database.
func MockActor(t *testing.T, tx *gorm.DB, name, domain string, opts ...func(*Actor)) *Actor {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	actor := &Actor{
		ID:             snowflake.Now(),
		URI:            fmt.Sprintf("https://%s/users/%s", domain, name),
		Name:           name,
		Domain:         domain,
		DisplayName:    name,
		InboxURI:       fmt.Sprintf("https://%s/users/%s/inbox", domain, name),
		SharedInboxURI: fmt.Sprintf("https://%s/inbox", domain),
		PublicKey:      kp.PublicKey,
	}
	for _, opt := range opts {
		opt(actor)
	}
	require.NoError(tx.Create(actor).Error)
	return actor
}

// MockAccount creates a local actor and an account that owns it.
func MockAccount(t *testing.T, tx *gorm.DB, name, domain string) *Account {
	t.Helper()
	require := require.New(t)

	actor := MockActor(t, tx, name, domain, WithType("LocalPerson"))
	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	account := &Account{
		ID:                snowflake.Now(),
		ActorID:           actor.ID,
		Actor:             actor,
		Email:             fmt.Sprintf("%s@%s", name, domain),
		EncryptedPassword: []byte("$2a$10$mock"),
		PrivateKey:        kp.PrivateKey,
	}
	require.NoError(tx.Create(account).Error)
	return account
}

func MockStatus(t *testing.T, tx *gorm.DB, actor *Actor, note string) *Status {
	t.Helper()
	require := require.New(t)

	id := snowflake.Now()
	status := &Status{
		ID:      id,
		URI:     fmt.Sprintf("https://%s/status/%d", actor.Domain, id),
		URL:     fmt.Sprintf("https://%s/status/%d", actor.Domain, id),
		ActorID: actor.ID,
		Note:    note,
	}
	require.NoError(tx.Create(status).Error)
	return status
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	// enable foreign key constraints
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}
