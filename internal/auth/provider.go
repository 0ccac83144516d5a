// Package auth は外部IdPによるサインインと現在ユーザーの状態管理を提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	defaultLineTokenURL   = "https://api.line.me/oauth2/v2.1/token"
	defaultLineProfileURL = "https://api.line.me/v2/profile"
)

// ProviderUserInfo はIdPから取得したユーザー情報を表す。
type ProviderUserInfo struct {
	ProviderUserID string
	Email          string // LINEはemailスコープ未許可の場合に空になる
	Name           string
	AvatarURL      string
	AccessToken    string // カレンダーAPI呼び出し用（Googleのみ利用する）
	Provider       string // "google" または "line"
}

// Provider はOAuth認証プロバイダーのインターフェース。
type Provider interface {
	// Name はプロバイダー識別子を返す。ユーザーIDのプレフィックスに使用される。
	Name() string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*ProviderUserInfo, error)
}

// GoogleConfig はGoogleプロバイダーの設定。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	TokenURL    string
	UserInfoURL string
}

// GoogleProvider はGoogle OAuth 2.0による認証を提供する。
// 取得したアクセストークンはGoogleカレンダーAPIの呼び出しにも使用される。
type GoogleProvider struct {
	config GoogleConfig
}

// NewGoogleProvider はGoogleProviderを生成する。
func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleProvider{config: config}
}

// Name はプロバイダー識別子を返す。
func (p *GoogleProvider) Name() string { return "google" }

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*ProviderUserInfo, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	var tokenResp googleTokenResponse
	if err := postForm(ctx, p.config.TokenURL, data, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	var userInfo googleUserInfo
	if err := getWithBearer(ctx, p.config.UserInfoURL, tokenResp.AccessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if userInfo.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	info := &ProviderUserInfo{
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		AvatarURL:      userInfo.Picture,
		AccessToken:    tokenResp.AccessToken,
		Provider:       p.Name(),
	}
	return info, nil
}

// LineConfig はLINEプロバイダーの設定。
type LineConfig struct {
	ChannelID     string
	ChannelSecret string
	RedirectURL   string

	// テスト用にオーバーライド可能なURL
	TokenURL   string
	ProfileURL string
}

// LineProvider はLINE Loginによる認証を提供する。
// LINEのプロフィールにはメールアドレスが含まれないため、Emailは空になりうる。
type LineProvider struct {
	config LineConfig
}

// NewLineProvider はLineProviderを生成する。
func NewLineProvider(config LineConfig) *LineProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultLineTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultLineProfileURL
	}
	return &LineProvider{config: config}
}

// Name はプロバイダー識別子を返す。
func (p *LineProvider) Name() string { return "line" }

// lineTokenResponse はLINEのトークンエンドポイントのレスポンス。
type lineTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// lineProfile はLINEのプロフィールエンドポイントのレスポンス。
type lineProfile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールを取得する。
func (p *LineProvider) ExchangeCode(ctx context.Context, code string) (*ProviderUserInfo, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ChannelID},
		"client_secret": {p.config.ChannelSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	var tokenResp lineTokenResponse
	if err := postForm(ctx, p.config.TokenURL, data, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	var profile lineProfile
	if err := getWithBearer(ctx, p.config.ProfileURL, tokenResp.AccessToken, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("empty userId in profile response")
	}

	info := &ProviderUserInfo{
		ProviderUserID: profile.UserID,
		Name:           profile.DisplayName,
		AvatarURL:      profile.PictureURL,
		Provider:       p.Name(),
	}
	return info, nil
}

// postForm はフォームをPOSTし、JSONレスポンスをデコードする。
func postForm(ctx context.Context, endpoint string, data url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return doJSON(req, dest)
}

// getWithBearer はBearerトークン付きでGETし、JSONレスポンスをデコードする。
func getWithBearer(ctx context.Context, endpoint, token string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return doJSON(req, dest)
}

// doJSON はリクエストを実行し、2xx以外をエラーとして扱う。
func doJSON(req *http.Request, dest any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface checks
var (
	_ Provider = (*GoogleProvider)(nil)
	_ Provider = (*LineProvider)(nil)
)
