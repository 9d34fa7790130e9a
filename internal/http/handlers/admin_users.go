package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/domain/account"
)

const manageUsersPath = "/admin/manage-users"

var errRoleUnchanged = errors.New("role unchanged")

type roleForm struct {
	Address     string `form:"address" binding:"required"`
	Role        string `form:"role" binding:"required"`
	CurrentRole string `form:"currentRole"`
}

type deleteForm struct {
	Username string `form:"username" binding:"required"`
	Confirm  string `form:"confirm"`
}

func (h *AdminHandler) ManageUsers(ctx *gin.Context) {
	h.renderUsers(ctx, http.StatusOK, ctx.Query("q"), nil)
}

func (h *AdminHandler) renderUsers(ctx *gin.Context, status int, q string, confirm func([]account.Account) *account.Account) {
	data := gin.H{"Query": q, "Accounts": []account.Account(nil), "Confirm": (*account.Account)(nil)}

	accounts, err := h.backend.ListAccounts(ctx.Request.Context())
	if err != nil {
		h.logBackendErr(ctx, "list_accounts_failed", err)
		data["Error"] = backend.Message(err, "Error fetching users")
		render(ctx, status, "admin_manage_users.html", "Manage users", data)
		return
	}

	data["Accounts"] = account.Filter(accounts, q)
	if confirm != nil {
		data["Confirm"] = confirm(accounts)
	}
	render(ctx, status, "admin_manage_users.html", "Manage users", data)
}

func (h *AdminHandler) UpdateRole(ctx *gin.Context) {
	var form roleForm
	if err := BindForm(ctx, &form); err != nil {
		redirectWithFlash(ctx, manageUsersPath, "error", "Error updating role")
		return
	}

	role, err := account.ParseRole(form.Role)
	if err != nil {
		redirectWithFlash(ctx, manageUsersPath, "error", "Error updating role")
		return
	}

	if current, err := account.ParseRole(form.CurrentRole); err == nil && current == role {
		emitAudit(ctx, h.audit, audit.ActionRoleUpdate, "", form.Address, errRoleUnchanged)
		redirectWithFlash(ctx, manageUsersPath, "error", "User already has the "+role.Name()+" role.")
		return
	}

	msg, err := h.backend.UpdateAccountRole(ctx.Request.Context(), form.Address, role)
	emitAudit(ctx, h.audit, audit.ActionRoleUpdate, "", form.Address+"="+string(role), err)

	if err != nil {
		h.logBackendErr(ctx, "update_role_failed", err)
		redirectWithFlash(ctx, manageUsersPath, "error", "Error updating role")
		return
	}
	redirectWithFlash(ctx, manageUsersPath, "success", firstNonEmpty(msg, "Role updated."))
}

// DeleteUser is two-step: without confirm=yes the page asks again.
func (h *AdminHandler) DeleteUser(ctx *gin.Context) {
	var form deleteForm
	if err := BindForm(ctx, &form); err != nil {
		redirectWithFlash(ctx, manageUsersPath, "error", "Error deleting account")
		return
	}

	if form.Confirm != "yes" {
		h.renderUsers(ctx, http.StatusOK, "", func(accounts []account.Account) *account.Account {
			for i := range accounts {
				if strings.EqualFold(accounts[i].Username, form.Username) {
					return &accounts[i]
				}
			}
			return &account.Account{Username: form.Username}
		})
		return
	}

	msg, err := h.backend.DeleteAccount(ctx.Request.Context(), form.Username)
	emitAudit(ctx, h.audit, audit.ActionAccountDelete, "", form.Username, err)

	if err != nil {
		h.logBackendErr(ctx, "delete_account_failed", err)
		redirectWithFlash(ctx, manageUsersPath, "error", "Error deleting account")
		return
	}
	redirectWithFlash(ctx, manageUsersPath, "success", firstNonEmpty(msg, "Account deleted."))
}
