package models

import "time"

// Order is a historical service request placed by a client.
type Order struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	ServiceID   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	Status      string    `json:"status"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}
