package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
)

func TestAuthService_Register(t *testing.T) {
	validInput := func() RegisterInput {
		return RegisterInput{
			FirstName: "Ivan",
			LastName:  "Petrov",
			Email:     "  Ivan.Petrov@Example.COM ",
			Password:  "correct horse",
		}
	}

	t.Run("creates a bowler account with a hashed password", func(t *testing.T) {
		userRepo := &repositories.MockUserRepository{
			CreateFunc: func(user *models.User) error {
				user.ID = 42
				return nil
			},
		}
		svc := NewAuthService(userRepo)

		user, err := svc.Register(context.Background(), validInput())
		require.NoError(t, err)

		assert.Equal(t, 42, user.ID)
		assert.Equal(t, models.RoleBowler, user.Role)
		assert.Equal(t, "ivan.petrov@example.com", user.Email)
		assert.NotEqual(t, "correct horse", user.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))
	})

	t.Run("rejects missing names", func(t *testing.T) {
		svc := NewAuthService(&repositories.MockUserRepository{})
		input := validInput()
		input.FirstName = "  "

		_, err := svc.Register(context.Background(), input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("rejects a malformed email", func(t *testing.T) {
		svc := NewAuthService(&repositories.MockUserRepository{})
		input := validInput()
		input.Email = "not-an-email"

		_, err := svc.Register(context.Background(), input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("rejects a short password", func(t *testing.T) {
		svc := NewAuthService(&repositories.MockUserRepository{})
		input := validInput()
		input.Password = "short"

		_, err := svc.Register(context.Background(), input)
		require.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("maps a taken email to a conflict", func(t *testing.T) {
		userRepo := &repositories.MockUserRepository{
			CreateFunc: func(user *models.User) error {
				return repositories.ErrUserEmailTaken
			},
		}
		svc := NewAuthService(userRepo)

		_, err := svc.Register(context.Background(), validInput())
		require.ErrorIs(t, err, ErrUserEmailConflict)
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &models.User{ID: 7, Email: "ivan@example.com", Role: models.RoleBowler, PasswordHash: string(hash)}

	t.Run("returns the user for valid credentials", func(t *testing.T) {
		userRepo := &repositories.MockUserRepository{
			GetByEmailFunc: func(email string) (*models.User, error) {
				assert.Equal(t, "ivan@example.com", email)
				return stored, nil
			},
		}
		svc := NewAuthService(userRepo)

		user, err := svc.Login(context.Background(), LoginInput{Email: " Ivan@Example.com ", Password: "correct horse"})
		require.NoError(t, err)
		assert.Equal(t, 7, user.ID)
	})

	t.Run("unknown email and wrong password fail the same way", func(t *testing.T) {
		userRepo := &repositories.MockUserRepository{
			GetByEmailFunc: func(email string) (*models.User, error) {
				if email == "ivan@example.com" {
					return stored, nil
				}
				return nil, repositories.ErrUserNotFound
			},
		}
		svc := NewAuthService(userRepo)

		_, err := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "correct horse"})
		require.ErrorIs(t, err, ErrAuthenticationFailed)

		_, err = svc.Login(context.Background(), LoginInput{Email: "ivan@example.com", Password: "wrong"})
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestAuthService_GetUserByID(t *testing.T) {
	t.Run("maps a missing user to a service error", func(t *testing.T) {
		svc := NewAuthService(&repositories.MockUserRepository{})
		_, err := svc.GetUserByID(context.Background(), 99)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}
