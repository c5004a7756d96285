package dto

// PermissionCheckResponse answers whether the caller holds a capability.
// Reason is an error code and is empty when allowed.
type PermissionCheckResponse struct {
	OrganizationID uint64 `json:"organization_id"`
	Capability     string `json:"capability"`
	Allowed        bool   `json:"allowed"`
	Bypassed       bool   `json:"bypassed,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// CapabilityListResponse lists the capability names
type CapabilityListResponse struct {
	Capabilities []string `json:"capabilities"`
}
