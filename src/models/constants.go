package models

// KeyStatus represents the lifecycle state of an API key
type KeyStatus string

const (
	// KeyStatusActive indicates the key can authenticate requests
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRevoked indicates the key was revoked; revocation is one-way
	KeyStatusRevoked KeyStatus = "revoked"
)

// AuditStatus represents the aggregate outcome of a batch request
type AuditStatus string

const (
	// AuditStatusSuccess indicates every item in the batch was created
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusPartial indicates some items succeeded and some failed
	AuditStatusPartial AuditStatus = "partial_success"
	// AuditStatusFailed indicates no item in the batch was created
	AuditStatusFailed AuditStatus = "failed"
)

// DeliveryStatus represents the final outcome of a webhook delivery
type DeliveryStatus string

const (
	// DeliverySuccess indicates the endpoint returned HTTP 200
	DeliverySuccess DeliveryStatus = "success"
	// DeliveryFailed indicates all delivery attempts were exhausted
	DeliveryFailed DeliveryStatus = "failed"
)
