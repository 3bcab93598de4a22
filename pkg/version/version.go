package version

// Version is the current version of the scam detection server
const Version = "0.1.0"

// UserAgent returns the User-Agent string for HTTP requests
func UserAgent() string {
	return "scamdetect/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "scamdetect/" + Version
}
