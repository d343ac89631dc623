package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/internal/config"
	"github.com/adms/sessiond/usecase"
)

// Client talks to the REST backend on behalf of the session lifecycle:
// token refresh, best-effort logout notification, navigation tree fetch.
type Client struct {
	http   *fasthttp.Client
	cfg    config.BackendConfig
	logger *zap.Logger
}

func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http: &fasthttp.Client{
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

type refreshRequest struct {
	Token string `json:"token"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

// RefreshToken exchanges the current token for a fresh one. Any non-200
// answer is terminal for the session.
func (c *Client) RefreshToken(ctx context.Context, current string) (string, error) {
	body, _ := json.Marshal(refreshRequest{Token: current})

	status, payload, err := c.do(ctx, fasthttp.MethodPost, c.cfg.RefreshPath, current, body)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeUnavailable, "refresh call failed", err)
	}
	if status != fasthttp.StatusOK {
		return "", domain.WrapError(domain.ErrCodeUnauthorized,
			fmt.Sprintf("refresh rejected with status %d", status), domain.ErrRefreshRejected)
	}

	var resp refreshResponse
	if err := json.Unmarshal(payload, &resp); err != nil || resp.Token == "" {
		return "", domain.WrapError(domain.ErrCodeInternal, "malformed refresh response", err)
	}
	return resp.Token, nil
}

// NotifyLogout tells the backend the session ended. Callers treat the
// error as advisory only.
func (c *Client) NotifyLogout(ctx context.Context, token string) error {
	status, _, err := c.do(ctx, fasthttp.MethodPost, c.cfg.LogoutPath, token, nil)
	if err != nil {
		return err
	}
	if status >= fasthttp.StatusBadRequest {
		return domain.NewError(domain.ErrCodeInternal, fmt.Sprintf("logout answered %d", status))
	}
	return nil
}

// FetchNavTree retrieves the navigation/authorization tree for a user.
func (c *Client) FetchNavTree(ctx context.Context, userID string) ([]domain.NavNode, error) {
	path := fmt.Sprintf("%s?user_id=%s", c.cfg.NavTreePath, userID)
	status, payload, err := c.do(ctx, fasthttp.MethodGet, path, "", nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "navigation tree fetch failed", err)
	}
	if status != fasthttp.StatusOK {
		return nil, domain.NewError(domain.ErrCodeInternal, fmt.Sprintf("navigation tree answered %d", status))
	}

	var tree []domain.NavNode
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "malformed navigation tree", err)
	}
	return tree, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return 0, nil, ctx.Err()
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

var _ usecase.Backend = (*Client)(nil)
