package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls to the auth provider.
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
