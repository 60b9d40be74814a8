// Package profile はプロフィールAPIからアカウントのランクを取得し、ランクストアへ反映する。
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/kitcourier/internal/model"
)

const (
	// defaultEndpoint はプロフィールAPIのエンドポイント。
	defaultEndpoint = "https://stats.pika-network.net/api/profile"
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
)

// ErrProfileNotFound はプロフィールが存在しない場合のエラー。
var ErrProfileNotFound = errors.New("profile not found")

// profileResponse はプロフィールAPIのレスポンスのうち利用する部分。
type profileResponse struct {
	Ranks []model.Rank `json:"ranks"`
}

// Client はプロフィールAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientを生成する。endpointが空の場合はデフォルトのエンドポイントを使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
	}
}

// GetRanks は指定ユーザーのランク一覧を取得する。
// プロフィールが存在しない場合はErrProfileNotFoundを返す。
func (c *Client) GetRanks(ctx context.Context, username string) ([]model.Rank, error) {
	reqURL := c.endpoint + "/" + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "kitcourier/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("プロフィールAPIの呼び出しに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("プロフィールAPIがエラーステータスを返しました",
			slog.String("username", username),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("プロフィールAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result profileResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("プロフィールAPIのレスポンスのパースに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return result.Ranks, nil
}
