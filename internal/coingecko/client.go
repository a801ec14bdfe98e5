package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"crypto-ticker-engine/internal/retry"
	"crypto-ticker-engine/pkg/types"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Asset 目录中的一个资产条目
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

// Client CoinGecko行情客户端，引擎中唯一发起网络请求的组件。
// 网络失败和非2xx响应统一上抛瞬时错误，由重试策略处理。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端，支持代理和超时配置
func NewClient(networkConfig types.NetworkConfig) *Client {
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}

	// 如果配置了代理，则使用代理
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
	}
}

// SetBaseURL 覆盖API地址，测试用
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// ListAssets 获取全部已知资产的id和symbol目录，
// 进程生命周期内获取一次，用于惰性解析symbol。
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	body, err := c.get(ctx, "/coins/list")
	if err != nil {
		return nil, err
	}

	var assets []Asset
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, retry.Transient(fmt.Errorf("解析资产目录失败: %v", err))
	}

	zap.L().Info("✅ 获取到资产目录", zap.Int("count", len(assets)))
	return assets, nil
}

// GetSpotPrice 获取现价。交易对在响应中不存在时返回 found=false，
// 这不是错误，而是无效id的合法终态。
func (c *Client) GetSpotPrice(ctx context.Context, assetID, vsCurrency string) (float64, bool, error) {
	path := fmt.Sprintf("/simple/price?ids=%s&vs_currencies=%s",
		url.QueryEscape(assetID), url.QueryEscape(vsCurrency))

	body, err := c.get(ctx, path)
	if err != nil {
		return 0, false, err
	}

	// 响应格式: {"bitcoin": {"usd": 123.45}}
	var prices map[string]map[string]float64
	if err := json.Unmarshal(body, &prices); err != nil {
		return 0, false, retry.Transient(fmt.Errorf("解析价格响应失败: %v", err))
	}

	quotes, ok := prices[assetID]
	if !ok {
		return 0, false, nil
	}
	price, ok := quotes[vsCurrency]
	if !ok {
		return 0, false, nil
	}

	return price, true, nil
}

// get 发送GET请求并读取响应体，网络错误和4xx/5xx统一为瞬时错误
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("HTTP请求失败: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, retry.Transient(fmt.Errorf("HTTP状态码错误: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("读取响应失败: %v", err))
	}

	return body, nil
}
