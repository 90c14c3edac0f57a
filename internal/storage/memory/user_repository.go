package memory

import (
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// userRepositoryInMemory — in-memory реализация UserRepository
// с уникальным индексом по email.
type userRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.User
	byEmail map[string]string
}

// NewUserRepository возвращает in-memory репозиторий аккаунтов.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{
		items:   make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

// Create сохраняет новый аккаунт; занятый email даёт ErrEmailTaken.
func (r *userRepositoryInMemory) Create(user domain.User) error {
	email := normalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return domain.ErrEmailTaken
	}
	r.items[user.ID] = user
	r.byEmail[email] = user.ID
	return nil
}

// Get возвращает аккаунт или ErrUserNotFound.
func (r *userRepositoryInMemory) Get(id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// GetByEmail ищет аккаунт по email (без учёта регистра).
func (r *userRepositoryInMemory) GetByEmail(email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.items[id], nil
}

// Save применяет обновления профиля, поддерживая индекс email.
func (r *userRepositoryInMemory) Save(user domain.User) error {
	email := normalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	currentEmail := normalizeEmail(current.Email)
	if currentEmail != email {
		if owner, exists := r.byEmail[email]; exists && owner != user.ID {
			return domain.ErrEmailTaken
		}
		delete(r.byEmail, currentEmail)
		r.byEmail[email] = user.ID
	}

	r.items[user.ID] = user
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
