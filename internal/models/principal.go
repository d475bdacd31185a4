package models

type PrincipalKind string

const (
	KindUser    PrincipalKind = "user"
	KindPartner PrincipalKind = "partner"
)

func (k PrincipalKind) Valid() bool {
	return k == KindUser || k == KindPartner
}

// Principal is the authenticated identity attached to a request. Status is
// only set for partner principals.
type Principal struct {
	ID     string
	Email  string
	Kind   PrincipalKind
	Role   UserRole
	Status PartnerStatus
}

func (p Principal) IsPartner() bool {
	return p.Kind == KindPartner
}

func (p Principal) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}
