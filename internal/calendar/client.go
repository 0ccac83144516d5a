// Package calendar は外部カレンダープロバイダー（Googleカレンダー）のクライアントを提供する。
// プロバイダー形式の予定レコードを内部のCalendarEvent形式へ変換する。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/entaku/ourcal/internal/model"
)

const (
	// DefaultCalendarID は取得対象のカレンダーID。
	DefaultCalendarID = "primary"

	// DefaultFetchDays は取得窓のデフォルト日数。
	DefaultFetchDays = 90
)

// Client は外部カレンダー操作のインターフェース。
// EventStoreが同期時に使用する。
type Client interface {
	// GetUpcomingEvents は[now, now+days]の予定を取得し、内部形式で返す。
	GetUpcomingEvents(ctx context.Context, days int) ([]model.CalendarEvent, error)

	// CreateEvent はリモートプロバイダーに予定を作成する。
	CreateEvent(ctx context.Context, event *model.CalendarEvent) (*model.CalendarEvent, error)

	// UpdateEvent はリモートプロバイダーの予定を部分更新する。
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.CalendarEvent, error)

	// DeleteEvent はリモートプロバイダーの予定を削除する。
	DeleteEvent(ctx context.Context, id string) error
}

// TokenSource はアクセストークンの取得インターフェース。
// storage.Storeの部分集合として定義する。
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// GoogleClient はGoogleカレンダーAPIを使用したClient実装。
// すべての操作は事前に保存されたアクセストークンを必要とし、
// トークンが無い場合はネットワークアクセス前に認証エラーを返す。
type GoogleClient struct {
	tokens     TokenSource
	logger     *slog.Logger
	calendarID string
	sanitizer  *MemoSanitizer

	// テスト用にオーバーライド可能なサービス生成フック。
	newService func(ctx context.Context, token string) (*gcal.Service, error)
}

// NewGoogleClient はGoogleClientを生成する。
func NewGoogleClient(tokens TokenSource, logger *slog.Logger) *GoogleClient {
	return &GoogleClient{
		tokens:     tokens,
		logger:     logger,
		calendarID: DefaultCalendarID,
		sanitizer:  NewMemoSanitizer(),
		newService: defaultNewService,
	}
}

// defaultNewService は保存済みトークンから認証済みのcalendar.Serviceを生成する。
func defaultNewService(ctx context.Context, token string) (*gcal.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// service はトークンを確認した上でcalendar.Serviceを返す。
// トークン未設定の場合は認証エラーを返し、ネットワークアクセスは行わない。
func (c *GoogleClient) service(ctx context.Context) (*gcal.Service, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}
	if token == "" {
		return nil, model.NewTokenMissingError()
	}
	return c.newService(ctx, token)
}

// GetUpcomingEvents は[now, now+days]の予定を取得し、内部形式で返す。
// daysが0以下の場合はDefaultFetchDaysを使用する。
func (c *GoogleClient) GetUpcomingEvents(ctx context.Context, days int) ([]model.CalendarEvent, error) {
	if days <= 0 {
		days = DefaultFetchDays
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	timeMin := now.Format(time.RFC3339)
	timeMax := now.AddDate(0, 0, days).Format(time.RFC3339)

	resp, err := svc.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin).
		TimeMax(timeMax).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]model.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, ok := c.toInternalEvent(item)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	c.logger.Info("fetched events from Google Calendar",
		slog.Int("count", len(events)),
		slog.Int("days", days),
	)

	return events, nil
}

// CreateEvent はリモートプロバイダーに予定を作成する。
func (c *GoogleClient) CreateEvent(ctx context.Context, event *model.CalendarEvent) (*model.CalendarEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	payload := &gcal.Event{
		Summary: event.Title,
		Start:   &gcal.EventDateTime{DateTime: event.StartAt.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: event.EndAt.Format(time.RFC3339)},
	}
	if event.Memo != nil {
		payload.Description = *event.Memo
	}

	created, err := svc.Events.Insert(c.calendarID, payload).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	ev, _ := c.toInternalEvent(created)
	return &ev, nil
}

// UpdateEvent はリモートプロバイダーの予定を部分更新する。
func (c *GoogleClient) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.CalendarEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	payload := &gcal.Event{}
	if patch.Title != nil {
		payload.Summary = *patch.Title
	}
	if patch.Memo != nil {
		payload.Description = *patch.Memo
	}
	if patch.StartAt != nil {
		payload.Start = &gcal.EventDateTime{DateTime: patch.StartAt.Format(time.RFC3339)}
	}
	if patch.EndAt != nil {
		payload.End = &gcal.EventDateTime{DateTime: patch.EndAt.Format(time.RFC3339)}
	}

	updated, err := svc.Events.Patch(c.calendarID, id, payload).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", id, err)
	}

	ev, _ := c.toInternalEvent(updated)
	return &ev, nil
}

// DeleteEvent はリモートプロバイダーの予定を削除する。
func (c *GoogleClient) DeleteEvent(ctx context.Context, id string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// toInternalEvent はGoogleカレンダーの予定を内部形式へ変換する。
// 開始/終了にはdateTime（時刻指定）とdate（終日）の両方を受け付ける。
// タイトル未設定の予定には既定値を補う。Memoはサニタイズ済みの平文になる。
// 変換できない予定（日時が欠落しているもの）はok=falseを返す。
func (c *GoogleClient) toInternalEvent(item *gcal.Event) (model.CalendarEvent, bool) {
	startAt, ok := parseEventTime(item.Start)
	if !ok {
		return model.CalendarEvent{}, false
	}
	endAt, ok := parseEventTime(item.End)
	if !ok {
		endAt = startAt
	}

	title := item.Summary
	if title == "" {
		title = "(タイトルなし)"
	}

	ev := model.CalendarEvent{
		ID:           item.Id,
		Title:        title,
		StartAt:      startAt,
		EndAt:        endAt,
		IsFromGoogle: true,
		// 新しく取得されたプロバイダー予定は非公開から始まる（fail-closed）。
		IsShared:  false,
		CreatedBy: "google",
		CreatedAt: time.Now(),
	}

	if item.Description != "" {
		memo := c.sanitizer.Sanitize(item.Description)
		ev.Memo = &memo
	}

	return ev, true
}

// parseEventTime はプロバイダーのEventDateTimeをtime.Timeへ変換する。
func parseEventTime(edt *gcal.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// compile-time interface check
var _ Client = (*GoogleClient)(nil)
