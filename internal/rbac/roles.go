package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleTenant    = "tenant"
	RoleLandlord  = "landlord"
	RoleFinance   = "finance"
	RoleAdmin     = "admin"
	RoleSettlebot = "settlebot" // internal role for feed ingestion workers
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsInternalRole(role string) bool { return role == RoleSettlebot }
