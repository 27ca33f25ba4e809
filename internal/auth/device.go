package auth

// DeviceCodeResponse holds the initial response from a device authorization request.
// It contains the code to show the user and the parameters needed for polling.
type DeviceCodeResponse struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int    // seconds until the device code expires
	Interval        int    // minimum polling interval in seconds
	Message         string // provider-formatted instructions for the user
}

// GraphTokens holds the tokens returned by the Microsoft identity platform.
// Field names follow the token endpoint's JSON response.
type GraphTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}
