// Package identity registers users and verifies their credentials.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
	"inkwell/session"
)

var (
	ErrDuplicateUsername  = fmt.Errorf("username already exists: %w", common.ErrConflict)
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Hash algorithms accepted for new registrations.
const (
	HashSHA256 = "sha256"
	HashBcrypt = "bcrypt"
)

type Store struct {
	db   *gorm.DB
	algo string
}

// NewStore returns a store hashing new passwords with algo. Verification
// accepts both formats regardless of algo.
func NewStore(db *gorm.DB, algo string) *Store {
	if algo != HashBcrypt {
		algo = HashSHA256
	}
	return &Store{db: db, algo: algo}
}

func (s *Store) Register(ctx context.Context, username, password string) (uint, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, common.Fail("register", "user", 0, fmt.Errorf("%w: username is required", common.ErrInvalidInput))
	}
	if password == "" {
		return 0, common.Fail("register", "user", 0, fmt.Errorf("%w: password is required", common.ErrInvalidInput))
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return 0, common.Fail("register", "user", 0, err)
	}

	user := models.User{Username: username, PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUsername
		}
		return tx.Create(&user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = ErrDuplicateUsername
	}
	if err != nil {
		return 0, common.Fail("register", "user", 0, err)
	}
	return user.ID, nil
}

// Authenticate returns a session for the user when the password matches.
func (s *Store) Authenticate(ctx context.Context, username, password string) (session.Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Anonymous, ErrInvalidCredentials
	}
	if err != nil {
		return session.Anonymous, common.Fail("authenticate", "user", 0, err)
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return session.Anonymous, ErrInvalidCredentials
	}
	return session.New(user.ID, user.Username), nil
}

func (s *Store) hashPassword(password string) (string, error) {
	if s.algo == HashBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return string(b), err
	}
	return HashPassword(password), nil
}

// HashPassword is the lowercase hex SHA-256 of the raw password bytes.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func CheckPasswordHash(password, hash string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(hash)) == 1
}
