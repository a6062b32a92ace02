package models

// Request bodies for the REST API.

type CreateChartRequest struct {
	CoinID string `json:"coin_id"`
	Range  string `json:"range"`
}

type SelectCoinRequest struct {
	CoinID string `json:"coin_id" binding:"required"`
}

type SelectRangeRequest struct {
	Range string `json:"range" binding:"required"`
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

type ValidatePasswordRequest struct {
	Password string `json:"password"`
}
