package models

// Operator é o funcionário autenticado que está batendo o ponto no terminal.
// Vem das claims do JWT emitido pela API principal.
type Operator struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"role,omitempty"`
}

func (o Operator) HasRole(roles ...string) bool {
	for _, have := range o.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
