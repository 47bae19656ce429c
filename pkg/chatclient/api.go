package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatflow/internal/models"
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

// API calls the REST endpoints. Token is sent as a bearer token once set,
// normally by Login or Register.
type API struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *API) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.do(ctx, http.MethodPost, "/api/user", req, &resp); err != nil {
		return nil, err
	}
	a.Token = resp.Token
	return &resp, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.do(ctx, http.MethodPost, "/api/user/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	a.Token = resp.Token
	return &resp, nil
}

func (a *API) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (*models.Channel, error) {
	var ch models.Channel
	if err := a.do(ctx, http.MethodPost, "/api/chat/channel", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (a *API) JoinChannel(ctx context.Context, channelID, password string) (*models.Channel, error) {
	var ch models.Channel
	req := models.JoinChannelRequest{ChannelID: channelID, Password: password}
	if err := a.do(ctx, http.MethodPut, "/api/chat/channel/join", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (a *API) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	var m models.Message
	req := models.SendMessageRequest{ChannelID: channelID, Content: content}
	if err := a.do(ctx, http.MethodPost, "/api/chat/message", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FetchPage loads one page of history, oldest message first.
func (a *API) FetchPage(ctx context.Context, channelID string, page int) (*models.MessagePage, error) {
	var p models.MessagePage
	path := "/api/chat/message/" + url.PathEscape(channelID) + "?page=" + strconv.Itoa(page)
	if err := a.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
