package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
)

// GroupStoreInterface はグループハンドラーが必要とするストアインターフェース。
type GroupStoreInterface interface {
	CreateGroup(name, userID string) (*model.Group, error)
	JoinGroup(inviteCode, userID string) *model.Group
	LeaveGroup(groupID, userID string)
	RemoveMember(groupID, userID string)
	DeleteGroup(groupID string)
	GroupByID(id string) *model.Group
	GroupByInviteCode(code string) *model.Group
	GroupsForUser(userID string) []model.Group
	MembersForGroup(groupID string) []model.GroupMember
}

// GroupHandler はグループ管理のHTTPハンドラー。
// 無料プランの上限（グループ数・メンバー数）はこの層で検証する。
type GroupHandler struct {
	store GroupStoreInterface
}

// NewGroupHandler はGroupHandlerを生成する。
func NewGroupHandler(store GroupStoreInterface) *GroupHandler {
	return &GroupHandler{store: store}
}

// createGroupRequest はグループ作成リクエストのボディ。
type createGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup はグループを作成する。作成者は管理者として自動的に参加する。
// POST /api/v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyGroupNameError())
		return
	}

	// 無料プラン: 所属グループ数の上限
	if len(h.store.GroupsForUser(userID)) >= model.FreePlanMaxGroups {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewGroupLimitError())
		return
	}

	group, err := h.store.CreateGroup(req.Name, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

// groupsResponse はグループ一覧のレスポンス。
type groupsResponse struct {
	Groups []model.Group `json:"groups"`
}

// ListGroups は現在ユーザーが所属するグループの一覧を返す。
// GET /api/v1/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	groups := h.store.GroupsForUser(userID)
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groupsResponse{Groups: groups})
}

// GetGroup はグループ詳細を返す。
// GET /api/v1/groups/{id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	group := h.store.GroupByID(id)
	if group == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGroupNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// DeleteGroup はグループを削除する。メンバーシップもカスケード削除される。
// DELETE /api/v1/groups/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.store.DeleteGroup(id)
	w.WriteHeader(http.StatusNoContent)
}

// joinGroupRequest はグループ参加リクエストのボディ。
type joinGroupRequest struct {
	InviteCode string `json:"inviteCode"`
}

// JoinGroup は招待コードでグループに参加する。
// コードに一致するグループが無い場合は400 INVALID_INVITE_CODEを返す。
// 既にメンバーの場合は同じグループを返す（冪等）。
// POST /api/v1/groups/join
func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req joinGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target := h.store.GroupByInviteCode(req.InviteCode)
	if target == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInviteCodeError(req.InviteCode))
		return
	}

	// 無料プラン: メンバー数の上限。既存メンバーの再参加（冪等）は制限しない。
	members := h.store.MembersForGroup(target.ID)
	alreadyMember := false
	for _, m := range members {
		if m.UserID == userID {
			alreadyMember = true
			break
		}
	}
	if !alreadyMember && len(members) >= model.FreePlanMaxMembersPerGroup {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewMemberLimitError())
		return
	}

	group := h.store.JoinGroup(req.InviteCode, userID)
	if group == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInviteCodeError(req.InviteCode))
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// LeaveGroup は現在ユーザーをグループから退出させる。
// メンバーでない場合も204を返す（べき等）。
// POST /api/v1/groups/{id}/leave
func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	h.store.LeaveGroup(chi.URLParam(r, "id"), userID)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember は指定ユーザーをグループから除名する。
// DELETE /api/v1/groups/{id}/members/{userID}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveMember(chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

// membersResponse はメンバー一覧のレスポンス。
type membersResponse struct {
	Members []model.GroupMember `json:"members"`
}

// ListMembers はグループのメンバー一覧を返す。
// GET /api/v1/groups/{id}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.store.GroupByID(id) == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGroupNotFoundError(id))
		return
	}

	members := h.store.MembersForGroup(id)
	if members == nil {
		members = []model.GroupMember{}
	}
	writeJSON(w, http.StatusOK, membersResponse{Members: members})
}
