package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type userRepositoryInMemory struct {
	store *Store
}

// NewUserRepository возвращает репозиторий пользователей поверх общего Store.
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepositoryInMemory{store: store}
}

func (r *userRepositoryInMemory) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTakenLocked(user.Email, 0) {
		return domain.User{}, fmt.Errorf("create user: %w", domain.ErrEmailTaken)
	}

	s.lastUserID++
	user.ID = s.lastUserID
	user.CreatedAt = s.now()
	s.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *userRepositoryInMemory) Get(ctx context.Context, id int64) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *userRepositoryInMemory) List(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(s.users))
	for _, id := range sortedKeys(s.users) {
		result = append(result, cloneUser(s.users[id]))
	}
	return result, nil
}

func (r *userRepositoryInMemory) Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	updated := cloneUser(current)
	if err := patch.ApplyTo(&updated); err != nil {
		return domain.User{}, err
	}
	if s.emailTakenLocked(updated.Email, id) {
		return domain.User{}, fmt.Errorf("update user %d: %w", id, domain.ErrEmailTaken)
	}

	s.users[id] = updated
	return cloneUser(updated), nil
}

func (r *userRepositoryInMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	if s.userHasOrdersLocked(id) {
		return fmt.Errorf("delete user %d: %w", id, domain.ErrUserHasOrders)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) emailTakenLocked(email string, exceptID int64) bool {
	for id, user := range s.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
