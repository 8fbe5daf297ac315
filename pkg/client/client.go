package client

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

	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// Client talks to the room API on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for baseURL, e.g. "https://raids.example.com/api/v1".
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateRoom(ctx context.Context, req dto.CreateRoomRequest) (*dto.RoomSnapshotResponse, error) {
	var out dto.RoomSnapshotResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRooms(ctx context.Context, status string, limit int) ([]dto.RoomResponse, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/rooms"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []dto.RoomResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRoom(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodGet, roomID, "", nil)
}

func (c *Client) Join(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/join", nil)
}

func (c *Client) Leave(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/leave", nil)
}

// SetReady sets a friend_ready flag. A nil target means the caller.
func (c *Client) SetReady(ctx context.Context, roomID uuid.UUID, ready bool, target *uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/ready", dto.SetReadyRequest{Ready: ready, TargetUserID: target})
}

func (c *Client) Invite(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/invite", nil)
}

func (c *Client) Cancel(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/cancel", nil)
}

func (c *Client) Close(ctx context.Context, roomID uuid.UUID) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/close", nil)
}

func (c *Client) Review(ctx context.Context, roomID uuid.UUID, req dto.ReviewRequest) (*dto.RoomSnapshotResponse, error) {
	return c.snapshot(ctx, http.MethodPost, roomID, "/reviews", req)
}

func (c *Client) snapshot(ctx context.Context, method string, roomID uuid.UUID, suffix string, body interface{}) (*dto.RoomSnapshotResponse, error) {
	var out dto.RoomSnapshotResponse
	if err := c.do(ctx, method, "/rooms/"+roomID.String()+suffix, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return newAPIError(resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// transportError marks a lost mutation as ErrUnknownOutcome. Reads are safe
// to repeat and keep the plain error.
func transportError(method string, err error) error {
	if method == http.MethodGet {
		return fmt.Errorf("request failed: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrUnknownOutcome, err)
}
