package models

import (
	"time"

	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// An Instance is this node. The admin account signs requests made on the
// instance's own behalf, such as fetching an actor to verify an inbound
// signature.
type Instance struct {
	ID               snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt        time.Time
	Domain           string `gorm:"size:64;uniqueIndex"`
	Title            string `gorm:"size:64"`
	ShortDescription string
	AdminID          *snowflake.ID
	Admin            *Account `gorm:"<-:false;"`
	AccountsCount    int32    `gorm:"default:0;not null"`
	StatusesCount    int32    `gorm:"default:0;not null"`
}

type Instances struct {
	db *gorm.DB
}

func NewInstances(db *gorm.DB) *Instances {
	return &Instances{db: db}
}

// ForDomain returns the instance serving the given domain.
func (i *Instances) ForDomain(domain string) (*Instance, error) {
	var instance Instance
	if err := i.db.Where("domain = ?", domain).Take(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// Create creates a new instance, complete with an admin service account.
func (i *Instances) Create(domain, title, description, adminEmail string) (*Instance, error) {
	var instance Instance
	err := i.db.Transaction(func(tx *gorm.DB) error {
		kp, err := crypto.GenerateRSAKeypair()
		if err != nil {
			return err
		}

		// the admin account is not for interactive login; the head of the
		// private key serves as an unguessable password
		passwd, err := bcrypt.GenerateFromPassword(trim(kp.PrivateKey, 72), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		instance = Instance{
			ID:               snowflake.Now(),
			Domain:           domain,
			Title:            title,
			ShortDescription: description,
		}
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}

		uri := "https://" + domain + "/users/admin"
		actor := &Actor{
			ID:             snowflake.Now(),
			Type:           "LocalService",
			URI:            uri,
			Name:           "admin",
			Domain:         domain,
			DisplayName:    "admin",
			InboxURI:       uri + "/inbox",
			SharedInboxURI: "https://" + domain + "/inbox",
			PublicKey:      kp.PublicKey,
		}
		if err := tx.Create(actor).Error; err != nil {
			return err
		}

		account := &Account{
			ID:                snowflake.Now(),
			InstanceID:        &instance.ID,
			ActorID:           actor.ID,
			Email:             adminEmail,
			EncryptedPassword: passwd,
			PrivateKey:        kp.PrivateKey,
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return tx.Model(&instance).Update("admin_id", account.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// trim trims the given byte slice to at most n bytes.
func trim(s []byte, n int) []byte {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// AdminAccount returns the admin account of the instance, with its actor
// preloaded.
func (i *Instances) AdminAccount() (*Account, error) {
	var instance Instance
	if err := i.db.Joins("Admin").Preload("Admin.Actor").Take(&instance, "admin_id is not null").Error; err != nil {
		return nil, err
	}
	return instance.Admin, nil
}
