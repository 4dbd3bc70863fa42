package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habitat-network/bskykit/pkg/bskykit"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("credentials not found")

// Credentials are what the bsky command needs to resume a session without
// logging in again.
type Credentials struct {
	InstanceURL string
	Session     bskykit.SessionInfo
}

type CredentialStore interface {
	Save(account string, creds *Credentials) error
	Get(account string) (*Credentials, error)
	Delete(account string) error
}

// Open connects to the credential database. dsn is a postgres URL or a path
// to a sqlite file, whose directory is created if needed.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to open postgres credential db: %w", err)
		}
		return db, nil
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("unable to create credential db directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite credential db: %w", err)
	}
	return db, nil
}

func NewCredentialStore(db *gorm.DB, encryptionKey []byte) (CredentialStore, error) {
	if encryptionKey == nil {
		return nil, fmt.Errorf("encryption key is required")
	}
	if err := checkKey(encryptionKey); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&credentialsModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &credentialStore{
		db:            db,
		encryptionKey: encryptionKey,
	}, nil
}

type credentialStore struct {
	db            *gorm.DB
	encryptionKey []byte
}

// credentialsModel is one logged in account. Tokens are sealed under a key
// derived for Account; the rest is kept in the clear so rows can be listed
// without the key.
type credentialsModel struct {
	Account     string `gorm:"column:account;primarykey"`
	DID         string `gorm:"column:did"`
	Handle      string
	InstanceURL string
	Tokens      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (credentialsModel) TableName() string {
	return "credentials"
}

type sealedTokens struct {
	AccessJwt  string `cbor:"1,keyasint"`
	RefreshJwt string `cbor:"2,keyasint"`
	Email      string `cbor:"3,keyasint,omitempty"`
}

func (s *credentialStore) Save(account string, creds *Credentials) error {
	if account == "" {
		return fmt.Errorf("account is required")
	}
	tokens, err := sealTokens(s.encryptionKey, account, sealedTokens{
		AccessJwt:  creds.Session.AccessJwt,
		RefreshJwt: creds.Session.RefreshJwt,
		Email:      creds.Session.Email,
	})
	if err != nil {
		return fmt.Errorf("failed to seal tokens: %w", err)
	}
	row := &credentialsModel{
		Account:     account,
		DID:         creds.Session.Did,
		Handle:      creds.Session.Handle,
		InstanceURL: creds.InstanceURL,
		Tokens:      tokens,
	}
	if err := s.db.Save(row).Error; err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *credentialStore) Get(account string) (*Credentials, error) {
	var row credentialsModel
	err := s.db.Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, account)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	tokens, err := openTokens(s.encryptionKey, row.Account, row.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to open tokens: %w", err)
	}
	return &Credentials{
		InstanceURL: row.InstanceURL,
		Session: bskykit.SessionInfo{
			AccessJwt:  tokens.AccessJwt,
			RefreshJwt: tokens.RefreshJwt,
			Email:      tokens.Email,
			Handle:     row.Handle,
			Did:        row.DID,
		},
	}, nil
}

func (s *credentialStore) Delete(account string) error {
	res := s.db.Where("account = ?", account).Delete(&credentialsModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete credentials: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	return nil
}
