package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"

	"tourmail/models"
)

// ErrOperatorNotFound is returned when no operator matches a lookup.
var ErrOperatorNotFound = errors.New("operator not found")

// OperatorStorage manages back-office operator accounts. The email index
// bucket maps lowercased addresses to operator ids.
type OperatorStorage struct {
	db *bbolt.DB
}

// NewOperatorStorage creates an operator store over an opened database.
func NewOperatorStorage(db *bbolt.DB) *OperatorStorage {
	return &OperatorStorage{db: db}
}

// CreateOperator registers a new operator with a bcrypt-hashed password.
func (s *OperatorStorage) CreateOperator(op *models.Operator, password string) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	op.Email = strings.ToLower(op.Email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}
	op.PasswordHash = string(hashed)

	now := time.Now()
	op.CreatedAt = now
	op.UpdatedAt = now
	if op.Language == "" {
		op.Language = "en"
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operator: %v", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket([]byte("OperatorEmails"))
		if emails.Get([]byte(op.Email)) != nil {
			return fmt.Errorf("operator with email %s already exists", op.Email)
		}
		if err := tx.Bucket([]byte("Operators")).Put([]byte(op.ID), data); err != nil {
			return err
		}
		return emails.Put([]byte(op.Email), []byte(op.ID))
	})
}

// EnsureOperator creates an account for the address when none exists yet.
// An existing account is returned untouched, so a password changed through
// the store survives restarts with the original configured one.
func (s *OperatorStorage) EnsureOperator(email, password, displayName string) (*models.Operator, error) {
	op, err := s.GetOperatorByEmail(email)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, ErrOperatorNotFound) {
		return nil, err
	}

	op = &models.Operator{
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.CreateOperator(op, password); err != nil {
		return nil, err
	}
	return op, nil
}

// GetOperator retrieves an operator by id.
func (s *OperatorStorage) GetOperator(id string) (*models.Operator, error) {
	var op models.Operator
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte("Operators")).Get([]byte(id))
		if data == nil {
			return ErrOperatorNotFound
		}
		return json.Unmarshal(data, &op)
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperatorByEmail retrieves an operator by address.
func (s *OperatorStorage) GetOperatorByEmail(email string) (*models.Operator, error) {
	email = strings.ToLower(email)

	var op models.Operator
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte("OperatorEmails")).Get([]byte(email))
		if id == nil {
			return ErrOperatorNotFound
		}
		data := tx.Bucket([]byte("Operators")).Get(id)
		if data == nil {
			return ErrOperatorNotFound
		}
		return json.Unmarshal(data, &op)
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// VerifyPassword checks an operator's credentials and records the login time.
func (s *OperatorStorage) VerifyPassword(email, password string) (*models.Operator, error) {
	op, err := s.GetOperatorByEmail(email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	op.LastLoginAt = time.Now()
	op.UpdatedAt = time.Now()
	if data, err := json.Marshal(op); err == nil {
		s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte("Operators")).Put([]byte(op.ID), data)
		})
	}

	return op, nil
}
