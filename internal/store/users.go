package store

import (
	"github.com/kjstillabower/project-tracker-service/internal/models"
)

// UsersFile is the name of the account registry below the data root.
const UsersFile = "users.json"

// UserStore is the account registry in users.json, keyed by username.
type UserStore struct {
	fs   *FS
	path string
}

func NewUserStore(fs *FS) *UserStore {
	return &UserStore{fs: fs, path: fs.Path(UsersFile)}
}

// All returns every account. A missing or corrupt registry reads as empty.
func (s *UserStore) All() (map[string]models.User, error) {
	users := make(map[string]models.User)
	if _, err := s.fs.readOrDefault(s.path, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]models.User)
	}
	return users, nil
}

// Get returns the account for username or ErrNotFound.
func (s *UserStore) Get(username string) (models.User, error) {
	users, err := s.All()
	if err != nil {
		return models.User{}, err
	}
	u, ok := users[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

// FindByID returns the username and account with the given ID or ErrNotFound.
func (s *UserStore) FindByID(id string) (string, models.User, error) {
	users, err := s.All()
	if err != nil {
		return "", models.User{}, err
	}
	for name, u := range users {
		if u.ID == id {
			return name, u, nil
		}
	}
	return "", models.User{}, ErrNotFound
}

// Modify applies fn to the registry under the file lock and saves the result when fn succeeds.
// A corrupt registry is never overwritten; Modify returns ErrCorrupt until it is
// repaired or replaced.
func (s *UserStore) Modify(fn func(users map[string]models.User) error) error {
	users := make(map[string]models.User)
	return s.fs.UpdateStrict(s.path, &users, func(bool) error {
		if users == nil {
			users = make(map[string]models.User)
		}
		return fn(users)
	})
}

// Put creates or replaces the account stored under username.
func (s *UserStore) Put(username string, u models.User) error {
	return s.Modify(func(users map[string]models.User) error {
		users[username] = u
		return nil
	})
}

// Rename moves an account to a new username. It fails with ErrNotFound when
// oldName is unknown and ErrExists when newName is taken by another account.
func (s *UserStore) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	return s.Modify(func(users map[string]models.User) error {
		u, ok := users[oldName]
		if !ok {
			return ErrNotFound
		}
		if _, taken := users[newName]; taken {
			return ErrExists
		}
		delete(users, oldName)
		users[newName] = u
		return nil
	})
}

// Delete removes the account stored under username or returns ErrNotFound.
func (s *UserStore) Delete(username string) error {
	return s.Modify(func(users map[string]models.User) error {
		if _, ok := users[username]; !ok {
			return ErrNotFound
		}
		delete(users, username)
		return nil
	})
}

// Replace overwrites the registry.
func (s *UserStore) Replace(users map[string]models.User) error {
	return s.fs.WriteJSON(s.path, users)
}
