package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/arjun/expense-tracker/backend/internal/models"
	"github.com/arjun/expense-tracker/backend/internal/web"
)

// Handler holds the auth HTTP handlers.
type Handler struct {
	authenticator *PasswordAuthenticator
	tokens        *JWTManager
	validate      *validator.Validate
}

func NewHandler(authenticator *PasswordAuthenticator, tokens *JWTManager) *Handler {
	return &Handler{
		authenticator: authenticator,
		tokens:        tokens,
		validate:      validator.New(),
	}
}

// SignUp registers a new user and returns a signed token.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		web.Fail(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.authenticator.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			web.Fail(w, http.StatusBadRequest, ErrEmailExists.Error())
			return
		}
		slog.Error("signup failed", "email", req.Email, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		slog.Error("token generation failed", "user_id", user.ID, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	web.OKMessage(w, http.StatusCreated, "User registered successfully", models.AuthData{
		Token: token,
		User:  models.PublicUser{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// SignIn authenticates a user and returns a signed token.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		web.Fail(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		web.Fail(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		slog.Error("token generation failed", "user_id", user.ID, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	web.OKMessage(w, http.StatusOK, "Login successful", models.AuthData{
		Token: token,
		User:  models.PublicUser{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// validationMessage flattens the first field error into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return "invalid email format"
		case "min":
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		}
		return fe.Field() + " is invalid"
	}
	return "validation error"
}
