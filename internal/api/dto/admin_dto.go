package dto

// UpdateUserStatusRequest toggles an account. IsActive is a pointer so an
// omitted field is rejected instead of read as false.
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// UpdateUserRoleRequest assigns a role.
type UpdateUserRoleRequest struct {
	Role string `json:"role"`
}
