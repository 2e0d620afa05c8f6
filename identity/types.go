package identity

// NoAuthHeader marks a request that must be sent without a bearer token. Any
// value enables it; intercepting transports strip it before sending.
const NoAuthHeader = "No-Auth"

// TokenPair is the login and refresh response body.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is a registration payload and a listing element.
type User struct {
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	ImgName    string `json:"imgName,omitempty"`
	ProfileImg []byte `json:"profileImg,omitempty"`
}

// Image is a profile picture as served by the identity service.
type Image struct {
	ContentType string
	Data        []byte
}

// Paths lists the service endpoints relative to the base URL.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Users    string
	// Image is a prefix; the user id is appended as the last path segment.
	Image string
}

// DefaultPaths returns the endpoint layout of the reference identity service.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/api/auth/login",
		Register: "/api/auth/register",
		Refresh:  "/refresh",
		Users:    "/api/auth/all-with-images",
		Image:    "/api/auth/image",
	}
}
