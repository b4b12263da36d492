package ledger

// ActionType is the closed set of audit-log kinds. The ledger engines only
// ever write ADD, WITHDRAW and EXPIRED; the remaining kinds originate from
// collaborators (user and catalog management) and are stored and rendered
// as-is without interpretation.
type ActionType string

const (
	ActionAdd      ActionType = "ADD"
	ActionWithdraw ActionType = "WITHDRAW"
	ActionExpired  ActionType = "EXPIRED"

	ActionCreateUser    ActionType = "CREATE_USER"
	ActionDeleteUser    ActionType = "DELETE_USER"
	ActionCreateProduct ActionType = "CREATE_PRODUCT"
	ActionDeleteProduct ActionType = "DELETE_PRODUCT"
)

// Known reports whether the kind belongs to the closed enumeration.
// Unknown kinds still round-trip through storage and history unchanged.
func (a ActionType) Known() bool {
	switch a {
	case ActionAdd, ActionWithdraw, ActionExpired,
		ActionCreateUser, ActionDeleteUser,
		ActionCreateProduct, ActionDeleteProduct:
		return true
	}
	return false
}
