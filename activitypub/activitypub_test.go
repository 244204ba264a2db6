package activitypub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/wren-social/wren/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)

	err = db.AutoMigrate(models.AllTables()...)
	require.NoError(err)

	// enable foreign key constraints
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}

func withType(typ models.ActorType) func(*models.Actor) {
	return func(a *models.Actor) {
		a.Type = typ
	}
}

func withInbox(inbox, sharedInbox string) func(*models.Actor) {
	return func(a *models.Actor) {
		a.InboxURI = inbox
		a.SharedInboxURI = sharedInbox
	}
}

func mockActor(t *testing.T, tx *gorm.DB, name, domain string, opts ...func(*models.Actor)) *models.Actor {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	actor := &models.Actor{
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

func mockAccount(t *testing.T, tx *gorm.DB, name, domain string, opts ...func(*models.Actor)) *models.Account {
	t.Helper()
	require := require.New(t)

	actor := mockActor(t, tx, name, domain, append([]func(*models.Actor){withType("LocalPerson")}, opts...)...)
	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)
	actor.PublicKey = kp.PublicKey
	require.NoError(tx.Model(actor).Update("public_key", kp.PublicKey).Error)

	account := &models.Account{
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

func mockInstance(t *testing.T, tx *gorm.DB, domain string) *models.Account {
	t.Helper()
	require := require.New(t)

	admin := mockAccount(t, tx, "admin", domain)
	instance := &models.Instance{
		ID:      snowflake.Now(),
		Domain:  domain,
		AdminID: &admin.ID,
	}
	require.NoError(tx.Create(instance).Error)
	return admin
}

func mockStatus(t *testing.T, tx *gorm.DB, actor *models.Actor, note string) *models.Status {
	t.Helper()
	require := require.New(t)

	id := snowflake.Now()
	status := &models.Status{
		ID:      id,
		URI:     fmt.Sprintf("https://%s/status/%d", actor.Domain, id),
		URL:     fmt.Sprintf("https://%s/status/%d", actor.Domain, id),
		ActorID: actor.ID,
		Note:    note,
	}
	require.NoError(tx.Create(status).Error)
	return status
}
