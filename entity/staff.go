package entity

// StaffAuth is the authenticated identity attached to staff API and
// websocket requests.
type StaffAuth struct {
	Username string `json:"username" bson:"username"`
	Role     string `json:"role" bson:"role"`
}

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)
