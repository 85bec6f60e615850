package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const minPasswordLength = 6

// CreateUserInput: данные регистрации пользователя. Password приходит в открытом виде.
type CreateUserInput struct {
	Email    string
	FullName *string
	Password string
}

// UpdateUserInput: частичное обновление пользователя.
type UpdateUserInput struct {
	Email    domain.Optional[string]
	FullName domain.Optional[string]
	Password domain.Optional[string]
}

// Service управляет пользователями.
type Service struct {
	repo     domain.UserRepository
	hasher   PasswordHasher
	validate *validator.Validate
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithHasher подменяет алгоритм хеширования паролей.
func WithHasher(hasher PasswordHasher) Option {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithValidator задаёт общий экземпляр validator.
func WithValidator(validate *validator.Validate) Option {
	return func(s *Service) {
		if validate != nil {
			s.validate = validate
		}
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис пользователей.
func NewService(repo domain.UserRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		hasher:   BcryptHasher{},
		validate: validator.New(),
		logger:   log.WithField("component", "users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create регистрирует пользователя. Пароль хешируется до сохранения.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := s.validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.repo.Create(ctx, domain.User{
		Email:          email,
		FullName:       normalizeFullName(in.FullName),
		HashedPassword: hash,
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.WithField("user_id", user.ID).Info("user created")
	return user, nil
}

// Get возвращает пользователя по ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.Get(ctx, id)
}

// List возвращает всех пользователей по возрастанию ID.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

// Update применяет только переданные поля. Новый пароль хешируется заново.
func (s *Service) Update(ctx context.Context, id int64, in UpdateUserInput) (domain.User, error) {
	var patch domain.UserPatch

	if in.Email.IsSet() {
		email, ok := in.Email.Get()
		if !ok {
			return domain.User{}, domain.NewValidationError("email", "must not be null")
		}
		email = domain.NormalizeEmail(email)
		if err := s.validateEmail(email); err != nil {
			return domain.User{}, err
		}
		patch.Email = domain.Some(email)
	}

	if in.FullName.IsSet() {
		if name, ok := in.FullName.Get(); ok {
			patch.FullName = domain.Some(strings.TrimSpace(name))
		} else {
			patch.FullName = domain.Null[string]()
		}
	}

	if in.Password.IsSet() {
		password, ok := in.Password.Get()
		if !ok {
			return domain.User{}, domain.NewValidationError("password", "must not be null")
		}
		if err := s.validatePassword(password); err != nil {
			return domain.User{}, err
		}
		hash, err := s.hash(password)
		if err != nil {
			return domain.User{}, err
		}
		patch.HashedPassword = domain.Some(hash)
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.User{}, err
	}

	s.logger.WithField("user_id", id).Debug("user updated")
	return user, nil
}

// Delete удаляет пользователя.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("user deleted")
	return nil
}

func (s *Service) validateEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domain.NewValidationError("email", "invalid email format")
	}
	return nil
}

func (s *Service) validatePassword(password string) error {
	if err := s.validate.Var(password, fmt.Sprintf("required,min=%d", minPasswordLength)); err != nil {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.NewValidationError("password", "must be at most 72 bytes")
		}
		return "", err
	}
	return hash, nil
}

func normalizeFullName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	return &trimmed
}
