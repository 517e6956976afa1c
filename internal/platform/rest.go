package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spec-kit/helpdesk-bot/internal/config"
)

// restClient drives the platform over its REST API. It performs no retries;
// rate limiting is the caller's concern (the bulk sync engine retries once,
// nothing else does).
type restClient struct {
	base  string
	token string
	http  *http.Client
}

// NewREST builds a Client backed by the platform's HTTP API.
func NewREST(cfg config.PlatformConfig) Client {
	return &restClient{
		base:  cfg.BaseURL,
		token: cfg.Token,
		http:  &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *restClient) CreateGroup(ctx context.Context, name string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/groups", map[string]any{"name": name}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *restClient) GroupExists(ctx context.Context, groupID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *restClient) GroupChildCount(ctx context.Context, groupID string) (int, error) {
	var out struct {
		ChildCount int `json:"child_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID), nil, &out); err != nil {
		return 0, err
	}
	return out.ChildCount, nil
}

func (c *restClient) CreateContainer(ctx context.Context, kind string, groupID, name string, overwrites []Overwrite) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"kind":       kind,
		"group_id":   groupID,
		"name":       name,
		"overwrites": encodeOverwrites(overwrites),
	}
	if err := c.do(ctx, http.MethodPost, "/containers", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *restClient) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(containerID), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *restClient) MoveContainer(ctx context.Context, containerID, groupID string) error {
	return c.do(ctx, http.MethodPatch, "/containers/"+url.PathEscape(containerID),
		map[string]any{"group_id": groupID}, nil)
}

func (c *restClient) SetOverwrites(ctx context.Context, containerID string, overwrites []Overwrite) error {
	return c.do(ctx, http.MethodPut, "/containers/"+url.PathEscape(containerID)+"/permissions",
		map[string]any{"overwrites": encodeOverwrites(overwrites)}, nil)
}

func (c *restClient) GrantAccess(ctx context.Context, containerID, memberID string) error {
	return c.do(ctx, http.MethodPut,
		"/containers/"+url.PathEscape(containerID)+"/permissions/"+url.PathEscape(memberID),
		map[string]any{"read": true, "write": true}, nil)
}

func (c *restClient) SendMessage(ctx context.Context, containerID, content string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/containers/"+url.PathEscape(containerID)+"/messages",
		map[string]any{"content": content}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *restClient) FetchMessage(ctx context.Context, containerID, messageID string) (*Message, error) {
	var out Message
	err := c.do(ctx, http.MethodGet,
		"/containers/"+url.PathEscape(containerID)+"/messages/"+url.PathEscape(messageID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) EditMessageControls(ctx context.Context, containerID, messageID string, controls Controls) error {
	return c.do(ctx, http.MethodPatch,
		"/containers/"+url.PathEscape(containerID)+"/messages/"+url.PathEscape(messageID)+"/controls",
		map[string]any{"accept_enabled": controls.AcceptEnabled, "close_enabled": controls.CloseEnabled}, nil)
}

func (c *restClient) DirectMessage(ctx context.Context, memberID, content string) error {
	return c.do(ctx, http.MethodPost, "/members/"+url.PathEscape(memberID)+"/messages",
		map[string]any{"content": content}, nil)
}

func (c *restClient) ContainerMessages(ctx context.Context, containerID string, limit int) ([]Message, error) {
	var out []Message
	path := "/containers/" + url.PathEscape(containerID) + "/messages?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) DownloadAttachment(ctx context.Context, att Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, statusError(resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *restClient) RoleMembers(ctx context.Context, roleID string) ([]string, error) {
	var out struct {
		Members []string `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(roleID)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

func (c *restClient) HasElevatedPrivilege(ctx context.Context, memberID string) (bool, error) {
	var out struct {
		Elevated bool `json:"elevated"`
	}
	if err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(memberID), nil, &out); err != nil {
		return false, err
	}
	return out.Elevated, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("platform: unexpected status %d", status)
	}
}

func encodeOverwrites(overwrites []Overwrite) []map[string]any {
	encoded := make([]map[string]any, 0, len(overwrites))
	for _, ow := range overwrites {
		encoded = append(encoded, map[string]any{
			"target_id": ow.TargetID,
			"is_role":   ow.IsRole,
			"read":      ow.Read,
			"write":     ow.Write,
		})
	}
	return encoded
}
