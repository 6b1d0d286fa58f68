package httpapi

import (
	"errors"
	"net/http"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/MrEthical07/campusAuth/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type handler struct {
	engine  *campusAuth.Engine
	cookies cookiePolicy
	logger  *zap.Logger
}

type sendOTPRequest struct {
	FirstName string `json:"firstName" form:"firstName"`
	Email     string `json:"email" form:"email"`
}

type signUpRequest struct {
	FirstName       string `json:"firstName" form:"firstName"`
	LastName        string `json:"lastName" form:"lastName"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	OTP             string `json:"otp" form:"otp"`
	Gender          string `json:"gender" form:"gender"`
	ContactNumber   string `json:"contactNumber" form:"contactNumber"`
}

type logInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" form:"oldPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

func (h *handler) sendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}

	result, err := h.engine.RequestVerification(c.Request.Context(), req.FirstName, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, campusAuth.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, "Please enter a valid email.")
		case errors.Is(err, campusAuth.ErrValidation):
			fail(c, http.StatusBadRequest, "All fields are required")
		default:
			h.logger.Error("send otp", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Error in send otp controller")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"Data":    result,
		"message": "OTP Sent to the User Email Successfully",
	})
}

func (h *handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "All fields are required. Please fill them carefully.")
		return
	}

	account, err := h.engine.CompleteSignup(c.Request.Context(), campusAuth.SignupRequest{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		OTP:             req.OTP,
		Gender:          req.Gender,
		ContactNumber:   req.ContactNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, campusAuth.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, "Please enter a valid email.")
		case errors.Is(err, campusAuth.ErrPasswordTooLong):
			fail(c, http.StatusBadRequest, "Password is too long.")
		case errors.Is(err, campusAuth.ErrValidation):
			fail(c, http.StatusBadRequest, "All fields are required. Please fill them carefully.")
		case errors.Is(err, campusAuth.ErrPasswordMismatch):
			fail(c, http.StatusBadRequest, "Password and ConfirmPassword do not match.")
		case errors.Is(err, campusAuth.ErrOTPNotFound):
			fail(c, http.StatusBadRequest, "Email not found In OTP Collections. Please check the email address and try again.")
		case errors.Is(err, campusAuth.ErrOTPInvalid):
			fail(c, http.StatusBadRequest, "Please enter a valid OTP.")
		case errors.Is(err, campusAuth.ErrOTPExpired):
			fail(c, http.StatusBadRequest, "The OTP has expired. Please request a new one.")
		case errors.Is(err, campusAuth.ErrOTPConsumed):
			fail(c, http.StatusBadRequest, "This OTP has already been used. Please request a new one.")
		case errors.Is(err, campusAuth.ErrAccountExists):
			fail(c, http.StatusBadRequest, "User already exists. Please sign in to continue.")
		default:
			h.logger.Error("sign up", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "The user was successfully registered.",
		"data":    account,
	})
}

func (h *handler) logIn(c *gin.Context) {
	var req logInRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}

	ctx := campusAuth.WithClientIP(c.Request.Context(), c.ClientIP())
	result, err := h.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, campusAuth.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, "Please enter a valid email")
		case errors.Is(err, campusAuth.ErrValidation):
			fail(c, http.StatusBadRequest, "All fields are required")
		case errors.Is(err, campusAuth.ErrNotRegistered):
			fail(c, http.StatusUnauthorized, "User is not registered. Please sign up first")
		case errors.Is(err, campusAuth.ErrWrongPassword):
			fail(c, http.StatusBadRequest, "Password is incorrect. Please enter the correct password")
		default:
			h.logger.Error("log in", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Internal server error in loginController.")
		}
		return
	}

	h.writeSession(c, result, "User logged in successfully")
}

func (h *handler) refreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBind(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		fail(c, http.StatusUnauthorized, "Unauthorized request. Please log in first.")
		return
	}

	result, err := h.engine.Refresh(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, campusAuth.ErrUnauthorized) {
			fail(c, http.StatusUnauthorized, "Refresh token is expired or used")
			return
		}
		h.logger.Error("refresh token", zap.Error(err))
		fail(c, http.StatusInternalServerError, msgInternal)
		return
	}

	h.writeSession(c, result, "Access token refreshed")
}

func (h *handler) writeSession(c *gin.Context, result *campusAuth.LoginResult, message string) {
	h.cookies.setTokens(c, result.AccessToken, result.RefreshToken, result.AccessTTL, result.RefreshTTL)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user":         result.Account,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"message":      message,
	})
}

func (h *handler) changePassword(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Unauthorized request. Please log in first.")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "All fields are Required")
		return
	}

	err := h.engine.ChangePassword(c.Request.Context(), account.ID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, campusAuth.ErrPasswordTooLong):
			fail(c, http.StatusBadRequest, "Password is too long.")
		case errors.Is(err, campusAuth.ErrValidation):
			fail(c, http.StatusBadRequest, "All fields are Required")
		case errors.Is(err, campusAuth.ErrWrongPassword):
			fail(c, http.StatusBadRequest, "Old Password is incorrect. Please enter the valid Old password")
		case errors.Is(err, campusAuth.ErrPasswordMismatch):
			fail(c, http.StatusBadRequest, "New Password And Confirm Password is Not Matched")
		case errors.Is(err, campusAuth.ErrUserNotFound):
			fail(c, http.StatusNotFound, "User not found.")
		default:
			h.logger.Error("change password", zap.String("user_id", account.ID), zap.Error(err))
			fail(c, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password changed successfully.",
	})
}

func (h *handler) logoutUser(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Unauthorized request. Please log in first.")
		return
	}

	if err := h.engine.Logout(c.Request.Context(), account.ID); err != nil {
		if errors.Is(err, campusAuth.ErrUserNotFound) {
			fail(c, http.StatusNotFound, "User not found.")
			return
		}
		h.logger.Error("logout", zap.String("user_id", account.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.cookies.clearTokens(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User logged out successfully.",
	})
}
