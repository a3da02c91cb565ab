package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"lifelog/internal/apperr"
	"lifelog/internal/models"
	"lifelog/internal/repositories"
	"lifelog/pkg/imagestore"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "jwt"

// SessionDuration is how long an issued session token stays valid.
const SessionDuration = 7 * 24 * time.Hour

// AuthService handles signup, login, session tokens and profile management.
type AuthService struct {
	userRepo  repositories.UserRepository
	images    imagestore.Store
	jwtSecret []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, images imagestore.Store, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		images:    images,
		jwtSecret: []byte(jwtSecret),
	}
}

func containsWhitespace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// Signup validates the credentials, hashes the password and persists the new
// user. Duplicate email is pre-checked; a duplicate username surfaces from
// the repository's unique index.
func (s *AuthService) Signup(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, apperr.New(apperr.Validation, "All fields are required")
	}
	if containsWhitespace(username) {
		return nil, apperr.New(apperr.Validation, "Username cannot contain spaces")
	}
	if containsWhitespace(password) {
		return nil, apperr.New(apperr.Validation, "Password cannot contain spaces")
	}
	password = strings.TrimSpace(password)
	if len(password) < 6 {
		return nil, apperr.New(apperr.Validation, "Password must be at least 6 characters")
	}

	if existing, err := s.userRepo.GetByEmail(email); err == nil && existing != nil {
		return nil, apperr.New(apperr.Duplicate, "User with this email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, "Could not register user", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// produce the same error so callers cannot probe which one was off.
func (s *AuthService) Login(email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, apperr.New(apperr.Authentication, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.New(apperr.Authentication, "Invalid credentials")
	}
	return user, nil
}

// IssueToken mints a signed session token for the user, valid for 7 days.
func (s *AuthService) IssueToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(SessionDuration).Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperr.Wrap(apperr.Unknown, "Could not issue session", err)
	}
	return tokenString, nil
}

// ValidateToken verifies signature and expiry and returns the embedded user ID.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Authentication, "Invalid or expired token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", apperr.New(apperr.Authentication, "Invalid or expired token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.New(apperr.Authentication, "Invalid or expired token")
	}
	return userID, nil
}

// GetProfile returns the user for the authenticated caller.
func (s *AuthService) GetProfile(userID string) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// UpdateProfile sets or clears the user's avatar.
//
// An empty payload removes the avatar: the stored external image is deleted
// first and a hard delete failure aborts the operation. A non-empty payload
// uploads the new image and then releases the previous reference best-effort
// (the old image never blocks storing the new one).
func (s *AuthService) UpdateProfile(ctx context.Context, userID, profilePic string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if profilePic == "" {
		if user.ProfilePic != "" {
			status, err := s.images.Delete(ctx, user.ProfilePic)
			if status == imagestore.StatusFailed {
				return nil, apperr.Wrap(apperr.Dependency, "Could not remove profile picture", err)
			}
		}
		user.ProfilePic = ""
		if err := s.userRepo.Update(user); err != nil {
			return nil, err
		}
		return user, nil
	}

	ref, err := s.images.Upload(ctx, profilePic, imagestore.Avatar)
	if err != nil {
		return nil, err
	}

	if old := user.ProfilePic; old != "" {
		if status, err := s.images.Delete(ctx, old); status == imagestore.StatusFailed {
			log.Printf("Warning: failed to delete replaced avatar %s for user %s: %v", old, userID, err)
		}
	}

	user.ProfilePic = ref
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}
