package domain

import "time"

// Workshop is a tenant: one independent workshop operator whose WhatsApp
// session, service records and status are isolated from all others.
type Workshop struct {
	ID        int64     `json:"id,string" form:"id"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	OwnerName string    `json:"owner_name" form:"owner_name"`
	Phone     string    `json:"phone" form:"phone"`
	City      string    `json:"city" form:"city"`
	Status    string    `json:"status" form:"status"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Workshop) TableName() string {
	return "workshop"
}
