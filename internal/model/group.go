// Package model はドメインモデルを定義する。
package model

import "time"

// MemberRole はグループ内でのメンバーの役割を表す。
type MemberRole string

const (
	// RoleAdmin はグループ管理者。
	RoleAdmin MemberRole = "admin"
	// RoleMember は一般メンバー。
	RoleMember MemberRole = "member"
)

// Group は予定を共有するグループ（家族など）を表す。
type Group struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"inviteCode"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GroupMember はグループへの所属関係を表す。
// 同一の(GroupID, UserID)の組に対してレコードは高々1件しか存在しない。
type GroupMember struct {
	ID       string     `json:"id"`
	GroupID  string     `json:"groupId"`
	UserID   string     `json:"userId"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// InviteCodeLength は招待コードの文字数。
const InviteCodeLength = 6

// 無料プランの上限（アプリ側バリデーションで使用する）。
const (
	FreePlanMaxGroups          = 1
	FreePlanMaxMembersPerGroup = 3
)
