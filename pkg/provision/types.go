package provision

// ScannedNetwork is one entry of the GET /scan response.
type ScannedNetwork struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
}

// ConnectResponse is the POST /connect response body.
type ConnectResponse struct {
	Success bool   `json:"success"`
	IP      string `json:"ip,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the body for POST /clear and POST /setpassword.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is a generic JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
