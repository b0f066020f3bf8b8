package rbac

import (
	"errors"
	"testing"
)

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		role, perm string
		allowed    bool
	}{
		{RoleClient, PermissionProjectCreate, true},
		{RoleClient, PermissionProposalSubmit, false},
		{RoleFreelancer, PermissionProposalSubmit, true},
		{RoleFreelancer, PermissionProposalDecide, false},
		{RoleFreelancer, PermissionReviewCreate, true},
		{"ADMIN", PermissionProjectCreate, false},
	}
	for _, tt := range tests {
		err := CheckPermission(tt.role, tt.perm)
		if (err == nil) != tt.allowed {
			t.Errorf("CheckPermission(%s, %s) = %v, allowed=%v", tt.role, tt.perm, err, tt.allowed)
		}
		var denied *PermissionDeniedError
		if err != nil && !errors.As(err, &denied) {
			t.Errorf("expected PermissionDeniedError, got %T", err)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleClient) || !ValidRole(RoleFreelancer) {
		t.Fatal("known roles must be valid")
	}
	if ValidRole("client") {
		t.Fatal("roles are case-sensitive")
	}
}
