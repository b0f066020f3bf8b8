package rbac

import "fmt"

// 权限常量
const (
	PermissionProjectCreate   = "project:create"
	PermissionProjectManage   = "project:manage"
	PermissionProposalSubmit  = "proposal:submit"
	PermissionProposalDecide  = "proposal:decide"
	PermissionMilestoneManage = "milestone:manage"
	PermissionMilestoneWork   = "milestone:work"
	PermissionReviewCreate    = "review:create"
)

// 角色常量，与 users.role 一致
const (
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleClient: {
		PermissionProjectCreate,
		PermissionProjectManage,
		PermissionProposalDecide,
		PermissionMilestoneManage,
		PermissionReviewCreate,
	},
	RoleFreelancer: {
		PermissionProposalSubmit,
		PermissionMilestoneWork,
		PermissionReviewCreate,
	},
}

// ValidRole 判断是否为已知角色
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 同 HasPermission，返回错误便于 handler 处理
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks permission %q", e.Role, e.Permission)
}
