// Package store persists user accounts and chat history as JSON files.
// The file formats are a compatibility contract with existing deployments
// and must not change shape.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("user already exists")
	ErrBadCredentials = errors.New("invalid username or password")
)

const (
	usersFileName = "users.json"

	// User ids are allocated above this floor so they never collide
	// with transport connection ids handed out from the same range.
	firstUserID = 10000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var reservedUsernames = map[string]struct{}{
	"administrator": {},
	"root":          {},
	"system":        {},
	"server":        {},
}

// User is a single account record as stored on disk.
type User struct {
	ID               uint32 `json:"id"`
	Username         string `json:"username"`
	PasswordHash     string `json:"password_hash"`
	Email            string `json:"email"`
	RegistrationDate string `json:"registration_date"`
}

type usersFile struct {
	LastUserID uint32 `json:"last_user_id"`
	Users      []User `json:"users"`
}

// UserStore keeps the account database in memory and mirrors every
// mutation to users.json in the data directory.
type UserStore struct {
	mu         sync.Mutex
	path       string
	lastUserID uint32
	users      map[string]*User
	online     map[string]bool
}

// OpenUserStore loads users.json from dataDir, creating an empty store
// when the file does not exist yet.
func OpenUserStore(dataDir string) (*UserStore, error) {
	s := &UserStore{
		path:       filepath.Join(dataDir, usersFileName),
		lastUserID: firstUserID,
		users:      make(map[string]*User),
		online:     make(map[string]bool),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var file usersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.lastUserID = file.LastUserID
	if s.lastUserID < firstUserID {
		s.lastUserID = firstUserID
	}
	for i := range file.Users {
		u := file.Users[i]
		s.users[u.Username] = &u
		if u.ID > s.lastUserID {
			s.lastUserID = u.ID
		}
	}
	return s, nil
}

func (s *UserStore) save() error {
	file := usersFile{
		LastUserID: s.lastUserID,
		Users:      make([]User, 0, len(s.users)),
	}
	for _, u := range s.users {
		file.Users = append(file.Users, *u)
	}
	// Keep the file stable across saves so diffs stay readable.
	for i := 0; i < len(file.Users); i++ {
		for j := i + 1; j < len(file.Users); j++ {
			if file.Users[j].ID < file.Users[i].ID {
				file.Users[i], file.Users[j] = file.Users[j], file.Users[i]
			}
		}
	}

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Register creates a new account and returns the assigned user id.
func (s *UserStore) Register(username, password, email string) (uint32, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if err := ValidatePassword(password); err != nil {
		return 0, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return 0, ErrUserExists
	}

	s.lastUserID++
	u := &User{
		ID:               s.lastUserID,
		Username:         username,
		PasswordHash:     hash,
		Email:            email,
		RegistrationDate: time.Now().Format("2006-01-02 15:04:05"),
	}
	s.users[username] = u

	if err := s.save(); err != nil {
		delete(s.users, username)
		s.lastUserID--
		return 0, err
	}
	return u.ID, nil
}

// Exists reports whether an account with the given username exists.
func (s *UserStore) Exists(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// Authenticate verifies the password for an existing account and returns
// its user id.
func (s *UserStore) Authenticate(username, password string) (uint32, error) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()

	if !ok {
		return 0, ErrBadCredentials
	}
	if !CheckPassword(u.PasswordHash, password) {
		return 0, ErrBadCredentials
	}
	return u.ID, nil
}

// GetUserID looks up the permanent id for a username.
func (s *UserStore) GetUserID(username string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return 0, ErrUserNotFound
	}
	return u.ID, nil
}

// GetUsername looks up the username for a permanent user id.
func (s *UserStore) GetUsername(userID uint32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			return u.Username, nil
		}
	}
	return "", ErrUserNotFound
}

// SetOnline records presence for a username. Presence is in-memory only
// and resets when the process restarts.
func (s *UserStore) SetOnline(username string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if online {
		s.online[username] = true
	} else {
		delete(s.online, username)
	}
}

// IsOnline reports in-memory presence for a username.
func (s *UserStore) IsOnline(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[username]
}

// UserCount returns the number of registered accounts.
func (s *UserStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// HashPassword derives a salted bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateUsername enforces the account naming rules: 3-20 characters,
// letters, digits and underscore only, not starting with a digit, and not
// one of the reserved names.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 20 {
		return errors.New("username must be between 3 and 20 characters")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username may only contain letters, digits and underscores")
	}
	if username[0] >= '0' && username[0] <= '9' {
		return errors.New("username must not start with a digit")
	}
	if _, ok := reservedUsernames[strings.ToLower(username)]; ok {
		return errors.New("username is reserved")
	}
	return nil
}

// ValidatePassword enforces the password rules: 6-64 characters with at
// least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 6 || len(password) > 64 {
		return errors.New("password must be between 6 and 64 characters")
	}
	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must contain at least one letter and one digit")
	}
	return nil
}
