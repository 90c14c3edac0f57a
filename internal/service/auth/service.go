package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const minPasswordLen = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Claims — полезная нагрузка access-токена.
type Claims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// RegisterInput — данные регистрации нового аккаунта.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// UpdateProfileInput — частичное обновление профиля. nil-поле означает "не менять".
type UpdateProfileInput struct {
	Name     *string
	Phone    *string
	Password *string
}

// Service отвечает за аккаунты: регистрацию, вход и профиль.
// Пароли хранятся только как bcrypt-хэши; сессии — stateless JWT.
type Service struct {
	users     domain.UserRepository
	logger    *log.Entry
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService создаёт сервис аккаунтов.
func NewService(users domain.UserRepository, jwtSecret []byte, tokenTTL time.Duration, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "auth")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		users:     users,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Register создаёт аккаунт покупателя. Email нормализуется к нижнему регистру.
func (s *Service) Register(input RegisterInput) (domain.User, error) {
	if err := validateRegisterInput(input); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Phone:        input.Phone,
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return domain.User{}, err
		}
		s.logger.WithError(err).WithField("email", user.Email).Error("failed to create user")
		return domain.User{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("user registered")

	return user, nil
}

// Login проверяет учётные данные и выдаёт access-токен.
// Отсутствующий email и неверный пароль дают одну и ту же ошибку:
// ответ не должен подсказывать, какие адреса зарегистрированы.
func (s *Service) Login(email, password string) (string, domain.User, error) {
	user, err := s.users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domain.IsNotFound(err) {
			return "", domain.User{}, domain.ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", domain.User{}, err
	}

	s.logger.WithField("user_id", user.ID).Info("user logged in")
	return token, user, nil
}

// IssueToken подписывает access-токен для аккаунта.
func (s *Service) IssueToken(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок действия токена.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetProfile возвращает аккаунт по идентификатору.
func (s *Service) GetProfile(userID string) (domain.User, error) {
	return s.users.Get(userID)
}

// UpdateProfile применяет частичное обновление профиля.
func (s *Service) UpdateProfile(userID string, input UpdateProfileInput) (domain.User, error) {
	if input.Name == nil && input.Phone == nil && input.Password == nil {
		return domain.User{}, domain.ErrNoFieldsToUpdate
	}

	user, err := s.users.Get(userID)
	if err != nil {
		return domain.User{}, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return domain.User{}, domain.ErrUserNameRequired
		}
		user.Name = *input.Name
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Password != nil {
		if len(*input.Password) < minPasswordLen {
			return domain.User{}, domain.ErrPasswordTooShort
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Save(user); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to update profile")
		return domain.User{}, err
	}
	return user, nil
}

func validateRegisterInput(input RegisterInput) error {
	var errs []error
	if input.Name == "" {
		errs = append(errs, domain.ErrUserNameRequired)
	}
	if !emailPattern.MatchString(strings.TrimSpace(input.Email)) {
		errs = append(errs, domain.ErrEmailInvalid)
	}
	if len(input.Password) < minPasswordLen {
		errs = append(errs, domain.ErrPasswordTooShort)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
