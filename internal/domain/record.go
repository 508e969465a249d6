package domain

import "time"

const (
	RecordStatusDraft     = "draft"
	RecordStatusFinalized = "finalized"
)

// ServiceRecord is one finalized workshop job: the customer, the bike, the
// amount billed and the date the next service is due. The reminder
// dispatcher reads due records and annotates the send outcome on them.
type ServiceRecord struct {
	ID              int64      `json:"id,string" form:"id"`
	WorkshopID      int64      `gorm:"index" json:"workshop_id,string" form:"workshop_id"`
	CustomerName    string     `json:"customer_name" form:"customer_name"`
	CustomerPhone   string     `json:"customer_phone" form:"customer_phone"`
	Bike            string     `json:"bike" form:"bike"`
	Work            string     `json:"work" form:"work"`
	Amount          int64      `json:"amount" form:"amount"`
	Status          string     `gorm:"index" json:"status" form:"status"`
	NextServiceDate time.Time  `gorm:"index" json:"next_service_date" form:"next_service_date"`
	Reminded        bool       `json:"reminded" form:"reminded"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at"`
	ReminderResult  string     `json:"reminder_result"`
	BillSentAt      *time.Time `json:"bill_sent_at"`
	BillResult      string     `json:"bill_result"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (ServiceRecord) TableName() string {
	return "service_record"
}
