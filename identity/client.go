package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	maxJSONBody  = 4 << 20
	maxImageBody = 16 << 20
	maxErrorBody = 512
)

// Client calls the identity service. It is safe for concurrent use.
type Client struct {
	http  *http.Client
	base  *url.URL
	paths Paths
}

// Option customizes a [Client].
type Option func(*Client)

// WithPaths overrides the endpoint layout. Empty fields keep their defaults.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		d := c.paths
		if p.Login != "" {
			d.Login = p.Login
		}
		if p.Register != "" {
			d.Register = p.Register
		}
		if p.Refresh != "" {
			d.Refresh = p.Refresh
		}
		if p.Users != "" {
			d.Users = p.Users
		}
		if p.Image != "" {
			d.Image = p.Image
		}
		c.paths = d
	}
}

// New returns a client for the service at baseURL. httpClient is typically
// built around an intercepting transport; nil uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("identity: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("identity: base URL must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{http: httpClient, base: u, paths: DefaultPaths()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	var pair TokenPair
	if err := c.postJSON(ctx, "login", c.paths.Login, creds, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.Token == "" {
		return TokenPair{}, fmt.Errorf("%w: login response without token", ErrInvalidResponse)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. A response without a new
// refresh token leaves RefreshToken empty; the caller decides whether to keep
// the old one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.postJSON(ctx, "refresh", c.paths.Refresh, body, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.Token == "" {
		return TokenPair{}, fmt.Errorf("%w: refresh response without token", ErrInvalidResponse)
	}
	return pair, nil
}

// Register creates an account. The user record is sent as the JSON "user"
// form field; image, when non-nil, is attached as the "file" part.
// Registration never touches stored tokens.
func (c *Client) Register(ctx context.Context, user User, image io.Reader, filename string) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("identity register: encode user: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user", string(userJSON)); err != nil {
		return fmt.Errorf("identity register: %w", err)
	}
	if image != nil {
		if filename == "" {
			filename = "profile"
		}
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("identity register: %w", err)
		}
		if _, err := io.Copy(part, image); err != nil {
			return fmt.Errorf("identity register: read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("identity register: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.paths.Register, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(NoAuthHeader, "True")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	return checkStatus("register", resp)
}

// ListUsers returns every user with their profile images. The request is
// authenticated by the transport.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.paths.Users, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if err := checkStatus("list users", resp); err != nil {
		return nil, err
	}
	var users []User
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(&users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return users, nil
}

// UserImage fetches the profile image of user id.
func (c *Client) UserImage(ctx context.Context, id int64) (Image, error) {
	p := strings.TrimRight(c.paths.Image, "/") + "/" + strconv.FormatInt(id, 10)
	req, err := c.newRequest(ctx, http.MethodGet, p, nil)
	if err != nil {
		return Image{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return Image{}, err
	}
	defer drain(resp)
	if err := checkStatus("user image", resp); err != nil {
		return Image{}, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBody))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return Image{ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("identity %s: encode body: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(NoAuthHeader, "True")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid path %q: %w", path, err)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		var local interface{ LocalFailure() bool }
		if errors.As(err, &local) && local.LocalFailure() {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return resp, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBody))
	resp.Body.Close()
}
