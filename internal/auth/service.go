package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"chatflow/internal/config"
	"chatflow/internal/database"
	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const userSearchLimit = 20

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type Service struct {
	users database.UserRepository
	cfg   config.JWTConfig
	now   func() time.Time
}

func NewService(users database.UserRepository, cfg config.JWTConfig) *Service {
	return &Service{
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error) {
	// Validate input
	if err := s.validateRegistrationRequest(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	// Get user by email
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Rename changes the caller's display name. Connected clients learn about it
// through the "user updated" event the client emits afterwards.
func (s *Service) Rename(ctx context.Context, userID string, req *models.RenameRequest) (*models.User, error) {
	name := strings.TrimSpace(req.NewName)
	if err := validateUsername(name); err != nil {
		return nil, err
	}
	return s.users.UpdateUsername(ctx, userID, name)
}

func (s *Service) SearchUsers(ctx context.Context, userID, keyword string) ([]*models.User, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []*models.User{}, nil
	}
	return s.users.SearchUsers(ctx, keyword, userID, userSearchLimit)
}

func (s *Service) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromToken validates the token and returns the user id it carries.
func (s *Service) UserIDFromToken(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: missing user id", apperrors.ErrInvalidToken)
	}
	return userID, nil
}

func (s *Service) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.UserIDFromToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", apperrors.ErrInvalidToken)
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*models.LoginResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// Remove sensitive data
	user.PasswordHash = ""

	return &models.LoginResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *Service) generateToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      now.Add(s.cfg.ExpiresIn).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.Secret)
}

func (s *Service) validateRegistrationRequest(req *models.RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fmt.Errorf("%w: missing required fields", apperrors.ErrValidation)
	}

	// Validate email format
	if !emailRegex.MatchString(req.Email) {
		return fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}

	// Validate password strength
	if len(req.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", apperrors.ErrValidation)
	}

	return validateUsername(req.Username)
}

func validateUsername(name string) error {
	if n := len([]rune(name)); n < 3 || n > 30 {
		return fmt.Errorf("%w: username must be 3-30 characters long", apperrors.ErrValidation)
	}
	return nil
}
