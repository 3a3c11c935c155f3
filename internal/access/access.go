// Package access содержит проверки прав: по роли и по владению ресурсом.
package access

import (
	"slices"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// Authenticated перечисляет роли любого аутентифицированного вызывающего.
var Authenticated = []model.Role{model.RoleCustomer, model.RoleAdmin}

// Require разрешает вызов, только если identity задан и его роль входит в allowed.
func Require(identity *model.IdentityContext, allowed ...model.Role) error {
	if identity == nil {
		return model.Forbidden("forbidden")
	}
	if !slices.Contains(allowed, identity.Role) {
		return model.Forbidden("forbidden")
	}
	return nil
}

// OwnsOrMayBypass сообщает, может ли identity работать с ресурсом владельца ownerID.
// Администратор имеет глобальный доступ, клиент только к своим ресурсам.
func OwnsOrMayBypass(identity *model.IdentityContext, ownerID int64) bool {
	if identity == nil {
		return false
	}

	switch identity.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCustomer:
		return identity.SubjectID == ownerID
	default:
		return false
	}
}
