package activitypub

import (
	stdcrypto "crypto"
	"crypto/rsa"

	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

// Keys owns actor keypairs. Local accounts get a keypair generated
// lazily on first use; remote actors carry a cached public key from
// their published actor document. A keypair is never regenerated once
// stored.
type Keys struct {
	db *gorm.DB
}

func NewKeys(db *gorm.DB) *Keys {
	return &Keys{db: db}
}

// PrivateKeyOf returns the account's private key, generating and
// persisting a keypair on first use. Persistence failure is a
// ServerError; the caller must not proceed with a key that was never
// stored.
func (k *Keys) PrivateKeyOf(account *models.Account) (*rsa.PrivateKey, error) {
	if len(account.PrivateKey) == 0 {
		kp, err := crypto.GenerateRSAKeypair()
		if err != nil {
			return nil, &ServerError{Err: err}
		}
		err = k.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(account).Update("private_key", kp.PrivateKey).Error; err != nil {
				return err
			}
			return tx.Model(&models.Actor{ID: account.ActorID}).Update("public_key", kp.PublicKey).Error
		})
		if err != nil {
			return nil, &ServerError{Err: err}
		}
		account.PrivateKey = kp.PrivateKey
		if account.Actor != nil {
			account.Actor.PublicKey = kp.PublicKey
		}
	}
	_, priv, err := crypto.ParseRSAPrivateKey(account.PrivateKey)
	if err != nil {
		return nil, &ServerError{Err: err}
	}
	return priv, nil
}

// PublicKeyOf returns the actor's public key. For a remote actor whose
// cached key is missing, one recovery fetch of its published actor
// document is attempted before failing permanently.
func (k *Keys) PublicKeyOf(actor *models.Actor) (stdcrypto.PublicKey, error) {
	if len(actor.PublicKey) == 0 {
		if actor.IsLocal() {
			account, err := models.NewAccounts(k.db).AccountForActor(actor)
			if err != nil {
				return nil, &ServerError{Err: err}
			}
			if _, err := k.PrivateKeyOf(account); err != nil {
				return nil, err
			}
			actor.PublicKey = account.Actor.PublicKey
		} else {
			if err := k.recoverRemoteKey(actor); err != nil {
				return nil, err
			}
		}
	}
	return crypto.ParseRSAPublicKey(actor.PublicKey)
}

// recoverRemoteKey re-fetches the actor's published key document and
// caches the key it advertises.
func (k *Keys) recoverRemoteKey(actor *models.Actor) error {
	admin, err := models.NewInstances(k.db).AdminAccount()
	if err != nil {
		return &ServerError{Err: err}
	}
	client, err := NewClientForAccount(k.db, admin)
	if err != nil {
		return err
	}
	obj, err := client.Get(k.db.Statement.Context, actor.URI)
	if err != nil {
		return &NotFoundError{Resource: "public key for " + actor.URI, Err: err}
	}
	pemBytes := []byte(stringFromAny(mapFromAny(obj["publicKey"])["publicKeyPem"]))
	if len(pemBytes) == 0 {
		return &NotFoundError{Resource: "public key for " + actor.URI}
	}
	if err := k.db.Model(actor).Update("public_key", pemBytes).Error; err != nil {
		return &ServerError{Err: err}
	}
	actor.PublicKey = pemBytes
	return nil
}

// NewClientForAccount builds a signed client for the account, generating
// its keypair first if it has none yet.
func NewClientForAccount(db *gorm.DB, account *models.Account) (*Client, error) {
	if _, err := NewKeys(db).PrivateKeyOf(account); err != nil {
		return nil, err
	}
	return NewClient(account)
}
