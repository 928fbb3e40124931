package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client는 keyring 데몬 API 클라이언트
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient는 새 API 클라이언트 생성
func NewClient(host string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// RestResp는 API 응답 래퍼
type RestResp struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// APIError는 실패 응답
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Status는 /api/v1/status 응답
type Status struct {
	Status  string `json:"status"`
	ChainID string `json:"chainId"`
	Path    string `json:"path"`
}

// Approvals는 /api/v1/approvals 응답
type Approvals struct {
	Unlock   []string `json:"unlock"`
	TxConfig []string `json:"txConfig"`
	Sign     []string `json:"sign"`
}

type SignRequest struct {
	ID          string `json:"id"`
	ChainID     string `json:"chainId"`
	Message     string `json:"message"`
	MessageText string `json:"messageText"`
}

type TxConfig struct {
	ChainID       string `json:"chainId"`
	AccountNumber uint64 `json:"accountNumber"`
	Sequence      uint64 `json:"sequence"`
	Gas           uint64 `json:"gas"`
	Fee           string `json:"fee"`
	Memo          string `json:"memo"`
}

type TxConfigRequest struct {
	ID     string   `json:"id"`
	Config TxConfig `json:"config"`
}

type Resolved struct {
	ID       string `json:"id"`
	Resolved bool   `json:"resolved"`
}

// GetStatus는 키 상태 조회
func (c *Client) GetStatus() (*Status, error) {
	var status Status
	if err := c.do("GET", "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetApprovals는 대기 중인 승인 요청 조회
func (c *Client) GetApprovals() (*Approvals, error) {
	var approvals Approvals
	if err := c.do("GET", "/api/v1/approvals", nil, &approvals); err != nil {
		return nil, err
	}
	return &approvals, nil
}

func (c *Client) GetSignRequest(id string) (*SignRequest, error) {
	var req SignRequest
	if err := c.do("GET", "/api/v1/sign/"+url.PathEscape(id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) GetTxConfig(id string) (*TxConfigRequest, error) {
	var req TxConfigRequest
	if err := c.do("GET", "/api/v1/txconfig/"+url.PathEscape(id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) Unlock(password string) error {
	return c.do("POST", "/api/v1/unlock", map[string]string{"password": password}, nil)
}

func (c *Client) RejectUnlock() error {
	return c.do("POST", "/api/v1/unlock/reject", nil, nil)
}

func (c *Client) ApproveSign(id string) (bool, error) {
	return c.resolve("/api/v1/sign/" + url.PathEscape(id) + "/approve")
}

func (c *Client) RejectSign(id string) (bool, error) {
	return c.resolve("/api/v1/sign/" + url.PathEscape(id) + "/reject")
}

// ApproveTxConfig는 config 가 nil 이면 요청된 그대로 승인
func (c *Client) ApproveTxConfig(id string, config *TxConfig) (bool, error) {
	var r Resolved
	var body interface{}
	if config != nil {
		body = config
	}
	if err := c.do("POST", "/api/v1/txconfig/"+url.PathEscape(id)+"/approve", body, &r); err != nil {
		return false, err
	}
	return r.Resolved, nil
}

func (c *Client) RejectTxConfig(id string) (bool, error) {
	return c.resolve("/api/v1/txconfig/" + url.PathEscape(id) + "/reject")
}

// IsAlive는 데몬 생존 여부 확인
func (c *Client) IsAlive() bool {
	_, err := c.GetStatus()
	return err == nil
}

func (c *Client) resolve(path string) (bool, error) {
	var r Resolved
	if err := c.do("POST", path, nil, &r); err != nil {
		return false, err
	}
	return r.Resolved, nil
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result RestResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if !result.Success {
		return &APIError{Status: resp.StatusCode, Code: result.Code, Message: result.Error}
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}
